package annotate

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	TypeAuto      = "auto"
	TypeHTTP      = "http"
	TypeHeuristic = "heuristic"
)

// New builds the configured annotator. "auto" uses the chat service when an
// API key is configured and the heuristic annotator otherwise.
func New(kind string, chat ChatConfig, log logrus.FieldLogger) (Annotator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	switch kind {
	case "", TypeAuto:
		if chat.APIKey == "" {
			log.Info("No annotation API key configured, using heuristic annotator")
			return Heuristic{}, nil
		}
		return NewChatAnnotator(chat, WithLogger(log))
	case TypeHTTP:
		return NewChatAnnotator(chat, WithLogger(log))
	case TypeHeuristic:
		return Heuristic{}, nil
	default:
		return nil, fmt.Errorf("unsupported annotator type: %s", kind)
	}
}
