package cli

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// startSpinner shows a progress spinner unless debug output is on. The
// returned cleanup stops the spinner and prints its FinalMSG.
func startSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	_ = s.Color("cyan")

	if !debug {
		s.Start()
		log.SetOutput(io.Discard)
	}

	cleanup := func() {
		if !debug {
			log.SetOutput(os.Stdout)
		}
		finalMsg := s.FinalMSG
		if finalMsg != "" && !strings.HasSuffix(finalMsg, "\n") {
			finalMsg += "\n"
		}
		s.FinalMSG = finalMsg
		s.Stop()
	}
	return s, cleanup
}

// promptLine reads one trimmed line from stdin.
func promptLine(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptChoice prints a numbered list and reads a 1-based selection.
func promptChoice(label string, options []string) (int, error) {
	for i, opt := range options {
		fmt.Printf("  %d) %s\n", i+1, opt)
	}
	line, err := promptLine(label)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(options) {
		return 0, fmt.Errorf("invalid selection %q: enter 1-%d", line, len(options))
	}
	return n - 1, nil
}

// confirm asks a yes/no question and returns true only on "y"/"yes".
func confirm(question string) (bool, error) {
	line, err := promptLine(question + " [y/N] ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func successMark() string { return color.GreenString("✓") }
func failMark() string    { return color.RedString("✗") }
func arrowMark() string   { return color.CyanString("→") }
