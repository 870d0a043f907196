package command

import (
	"strconv"
	"strings"
	"unicode"
)

var units = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tens = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// firstNumber returns the first number in text, written as digits or as English words up to "one hundred".
func firstNumber(text string) (int, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == ','
	})

	for i := range words {
		words[i] = strings.TrimRight(words[i], "%.!?")
	}

	for i := 0; i < len(words); i++ {
		word := words[i]
		if n, err := strconv.Atoi(word); err == nil {
			return n, true
		}

		if word == "hundred" || (word == "one" || word == "a") && i+1 < len(words) && words[i+1] == "hundred" {
			return 100, true
		}
		if n, ok := tens[word]; ok {
			if i+1 < len(words) {
				if u, ok := units[words[i+1]]; ok && u > 0 && u < 10 {
					return n + u, true
				}
			}
			return n, true
		}
		if n, ok := units[word]; ok {
			return n, true
		}
	}
	return 0, false
}
