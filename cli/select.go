package cli

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// Choice is one selectable item.
type Choice[T any] struct {
	Label string
	Value T
}

// Labels returns the labels of choices in order.
func Labels[T any](choices []Choice[T]) []string {
	labels := make([]string, len(choices))

	for i, c := range choices {
		labels[i] = c.Label
	}

	return labels
}

// Choose shows choices and returns the value of the selected one.
func Choose[T any](label string, choices ...Choice[T]) (T, error) { //nolint:ireturn
	var zero T

	if len(choices) == 0 {
		return zero, errEmpty
	}

	labels := Labels(choices)

	sel := &promptui.Select{
		Label: label,
		Items: labels,
		Size:  len(labels),
		Searcher: func(input string, index int) bool {
			return Matches(labels[index], input)
		},
	}

	idx, _, err := sel.Run()
	if err != nil {
		return zero, err
	}

	return choices[idx].Value, nil
}

// Matches is the case-insensitive prefix search used by Choose.
func Matches(label, input string) bool {
	if len(input) == 0 {
		return false
	}

	return strings.HasPrefix(strings.ToLower(label), strings.ToLower(input))
}
