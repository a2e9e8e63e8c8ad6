package notify

import (
	"context"
	"fmt"
	"strings"
)

// StdoutNotifier prints the digest instead of delivering it; used for dry
// runs.
type StdoutNotifier struct{}

func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{}
}

func (n *StdoutNotifier) Send(_ context.Context, subject, body string) error {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println(subject)
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println(body)
	fmt.Println(strings.Repeat("=", 72))
	return nil
}
