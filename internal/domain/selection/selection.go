package selection

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Selection is a strictly increasing list of 1-based chapter numbers, each
// within the chapter count it was resolved against.
type Selection []int

// Parse resolves any supported selection form: an int, a []int or a string.
// Unsupported types resolve to an empty selection.
func Parse(chapterCount int, value any) Selection {
	switch v := value.(type) {
	case int:
		return FromInt(chapterCount, v)
	case []int:
		return FromInts(chapterCount, v)
	case string:
		return FromString(chapterCount, v)
	case Selection:
		return FromInts(chapterCount, v)
	default:
		return Selection{}
	}
}

func FromInt(chapterCount, number int) Selection {
	return FromInts(chapterCount, []int{number})
}

// FromInts keeps the in-range numbers, sorted and deduplicated.
func FromInts(chapterCount int, numbers []int) Selection {
	seen := make(map[int]struct{}, len(numbers))
	out := make(Selection, 0, len(numbers))

	for _, n := range numbers {
		if n < 1 || n > chapterCount {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}

	slices.Sort(out)
	return out
}

// FromString parses comma separated tokens. A token is a chapter number, an
// inclusive "start-end" or "start:end" range, or "all"/"*". Malformed and
// reversed tokens contribute nothing.
func FromString(chapterCount int, expr string) Selection {
	var numbers []int

	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if strings.EqualFold(token, "all") || token == "*" {
			return All(chapterCount)
		}

		token = strings.ReplaceAll(token, ":", "-")
		if start, end, ok := parseRange(token); ok {
			for n := max(start, 1); n <= min(end, chapterCount); n++ {
				numbers = append(numbers, n)
			}
			continue
		}

		if n, err := strconv.Atoi(token); err == nil {
			numbers = append(numbers, n)
		}
	}

	return FromInts(chapterCount, numbers)
}

// All selects every chapter.
func All(chapterCount int) Selection {
	out := make(Selection, 0, max(chapterCount, 0))
	for n := 1; n <= chapterCount; n++ {
		out = append(out, n)
	}
	return out
}

func parseRange(token string) (start, end int, ok bool) {
	before, after, found := strings.Cut(token, "-")
	if !found || before == "" {
		return 0, 0, false
	}

	start, err := strconv.Atoi(strings.TrimSpace(before))
	if err != nil {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

func (s Selection) Contains(number int) bool {
	_, found := slices.BinarySearch(s, number)
	return found
}

func (s Selection) Empty() bool {
	return len(s) == 0
}

// String renders the selection compactly, collapsing consecutive runs:
// [1 2 3 5] becomes "1-3_5".
func (s Selection) String() string {
	if len(s) == 0 {
		return ""
	}

	var parts []string
	runStart := s[0]
	prev := s[0]

	emit := func(from, to int) {
		if from == to {
			parts = append(parts, strconv.Itoa(from))
			return
		}
		parts = append(parts, fmt.Sprintf("%d-%d", from, to))
	}

	for _, n := range s[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		emit(runStart, prev)
		runStart, prev = n, n
	}
	emit(runStart, prev)

	return strings.Join(parts, "_")
}
