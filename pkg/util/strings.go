package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeName lowercases a team or player name, drops punctuation and
// collapses whitespace, so "The Crown & Anchor" and "crown and anchor " compare
// close to equal
func NormalizeName(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r == '&':
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("and")
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
		default:
			space = true
		}
	}
	return strings.TrimPrefix(b.String(), "the ")
}

// LevenshteinDistance calculates the Levenshtein distance between two strings
func LevenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// FuzzyMatchScore returns a similarity score between 0.0 and 1.0
// where 1.0 is a perfect match and 0.0 is completely different
func FuzzyMatchScore(str1, str2 string) float64 {
	a, b := NormalizeName(str1), NormalizeName(str2)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// IsFuzzyMatch reports whether two names are within an edit distance of 2
// once normalized
func IsFuzzyMatch(str1, str2 string) bool {
	return LevenshteinDistance(NormalizeName(str1), NormalizeName(str2)) <= 2
}

// BestMatch returns the candidate most similar to name, provided its score is
// at least minScore. An exact match after normalization always wins; ties go to
// the earlier candidate.
func BestMatch(name string, candidates []string, minScore float64) (string, bool) {
	best, bestScore := "", math.Inf(-1)
	norm := NormalizeName(name)
	for _, c := range candidates {
		if NormalizeName(c) == norm {
			return c, true
		}
		if score := FuzzyMatchScore(name, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	if best == "" || bestScore < minScore {
		return "", false
	}
	return best, true
}

// GetAsString converts various types to string
// If s is a string, return it
// If s is any form of number, format it and return it
func GetAsString(s any) (string, error) {
	if s == nil {
		return "", fmt.Errorf("cannot convert nil to string")
	}

	switch v := s.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// GetAsInteger converts various types to integer
// If s is an integer, return it
// If s is a whole float (as JSON numbers decode) or a numeric string, convert it
// If s is any other type, return an error
func GetAsInteger(s any) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("cannot convert nil to integer")
	}

	switch v := s.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		if v > math.MaxInt || v < math.MinInt {
			return 0, fmt.Errorf("int64 value %d is out of int range", v)
		}
		return int(v), nil
	case uint64:
		if v > math.MaxInt {
			return 0, fmt.Errorf("uint64 value %d is out of int range", v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, fmt.Errorf("float64 value %f is not a whole number", v)
		}
		return int(v), nil
	case string:
		result, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to integer: %w", v, err)
		}
		return result, nil
	default:
		return 0, fmt.Errorf("cannot convert type %T to integer", s)
	}
}

// GetAsUint64 converts a non-negative number or numeric string to uint64.
// Large seeds arrive as strings because JSON numbers lose precision past 2^53.
func GetAsUint64(s any) (uint64, error) {
	switch v := s.(type) {
	case string:
		result, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to unsigned integer: %w", v, err)
		}
		return result, nil
	case uint64:
		return v, nil
	}
	i, err := GetAsInteger(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("value %d is negative", i)
	}
	return uint64(i), nil
}
