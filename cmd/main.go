package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"audionest/internal/cli/scheme/colours"
	"audionest/internal/config"
	"audionest/internal/story/nest"
)

func main() {
	app := nest.NewAudioNest()

	// Setup signal handling for graceful shutdown. The first signal stops the
	// run between paragraphs, a second one exits immediately.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n" + colours.Warning.Sprint("⏹️  Stopping after the current paragraph..."))
		app.Cancel()
		<-sigChan
		os.Exit(130)
	}()

	rootCmd := &cobra.Command{
		Use:   "audionest",
		Short: "🎧 Turn books into narrated audiobooks",
		Long: `
┌─────────────────────────────────────┐
│  🎧 Welcome to AudioNest! 📚        │
│  Books in, narrated audio out       │
└─────────────────────────────────────┘

AudioNest reads a book, works out who is speaking and how they feel in
every paragraph, and narrates it with a matching voice.
		`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.InitLogging()
			app.Configure(cfg)
			return nil
		},
		Run: app.ShowWelcome,
	}

	// Convert command
	convertCmd := &cobra.Command{
		Use:   "convert <book>",
		Short: "🎙️ Narrate a book",
		Long:  "Narrate the selected chapters of a text file, URL or gutenberg:<id> into WAV files and a manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  app.Convert,
	}

	// Chapters command
	chaptersCmd := &cobra.Command{
		Use:   "chapters <book>",
		Short: "📋 List detected chapters",
		Long:  "Show the chapters found in a book with word and paragraph counts, without synthesizing anything",
		Args:  cobra.ExactArgs(1),
		RunE:  app.ListChapters,
	}

	// Select command
	selectCmd := &cobra.Command{
		Use:     "select <book> <chapters>",
		Short:   "🔢 Preview a chapter selection",
		Long:    "Resolve a selection such as \"1,3-5\" or \"all\" against a book",
		Example: "  audionest select book.txt 1,3-5\n  audionest select gutenberg:1342 all",
		Args:    cobra.ExactArgs(2),
		RunE:    app.ShowSelection,
	}

	// Voices command
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "🎭 List voices",
		Long:  "Show the character/emotion voice library and the voices the TTS engine offers",
		RunE:  app.ListVoices,
	}

	// Play command
	playCmd := &cobra.Command{
		Use:   "play <file>",
		Short: "🔊 Play an audio file",
		Args:  cobra.ExactArgs(1),
		RunE:  app.Play,
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "🗄️ Manage caches",
		Long:  "Inspect or clear the downloaded book cache and the TTS audio cache",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "📊 Show cache status",
			RunE:  app.ShowCacheStatus,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "🧹 Clear caches",
			RunE:  app.ClearCache,
		},
	)

	// Add flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default $HOME/.audionest/audionest.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("engine", "e", "auto", "TTS engine (auto, espeak, googleclassic, mock)")

	convertCmd.Flags().StringP("chapters", "c", "all", "Chapters to narrate, e.g. 3, 1,4 or 2-5")
	convertCmd.Flags().StringP("output", "o", "audiobook", "Output directory")
	convertCmd.Flags().String("base-name", "", "File name prefix (default derived from title and chapters)")
	convertCmd.Flags().Bool("intro", false, "Announce the book title and author first")
	convertCmd.Flags().Bool("announce-titles", true, "Announce each chapter title")
	convertCmd.Flags().Bool("resume", false, "Reuse chapter files left by an earlier run")
	convertCmd.Flags().IntP("workers", "w", 1, "Chapters narrated in parallel")
	convertCmd.Flags().StringP("annotator", "a", "auto", "Narrative annotator (auto, http, heuristic)")

	bindFlags(rootCmd, map[string]string{
		"log.level": "log-level",
		"tts.type":  "engine",
	})
	bindFlags(convertCmd, map[string]string{
		"pipeline.output_dir":      "output",
		"pipeline.include_intro":   "intro",
		"pipeline.announce_titles": "announce-titles",
		"pipeline.workers":         "workers",
		"annotator.type":           "annotator",
	})

	rootCmd.AddCommand(convertCmd, chaptersCmd, selectCmd, voicesCmd, playCmd, cacheCmd)

	cobra.OnInitialize(func() {
		initConfig(rootCmd)
	})

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			colours.Error.Printf("❌ Failed to bind --%s: %v\n", flag, err)
			os.Exit(1)
		}
	}
}

// Configuration management with Viper
func initConfig(rootCmd *cobra.Command) {
	config.SetDefaults()

	if file, _ := rootCmd.PersistentFlags().GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("audionest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.audionest")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("audionest")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			colours.Warning.Printf("⚠️ Could not read config file: %v\n", err)
		}
	}
}
