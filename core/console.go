package narrator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Commands maps operator input onto pipeline actions. Nil actions
// are ignored, so callers wire only what their mode supports.
type Commands struct {
	Pause     func()
	Resume    func()
	Interrupt func()
	Voice     func()
	Quit      func()
}

const helpText = `Commands:
  p, pause      pause narration
  r, resume     resume narration
  i, interrupt  stop current narration and clear the queue
  v, voice      start a voice input session
  h, help       show this help
  q, quit       stop the narrator`

// ListenCommands reads operator commands line by line. It returns
// after a quit command, on EOF (leaving the pipeline running), or
// when the context is cancelled.
func ListenCommands(ctx context.Context, input io.Reader, output io.Writer, commands Commands) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			select {
			case lines <- strings.ToLower(strings.TrimSpace(scanner.Text())):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				logger.Info("command input closed, keyboard controls disabled")
				return
			}
			if quit := dispatch(line, output, commands); quit {
				return
			}
		}
	}
}

func dispatch(line string, output io.Writer, commands Commands) (quit bool) {
	run := func(action func()) {
		if action != nil {
			action()
		}
	}

	switch line {
	case "":
	case "p", "pause":
		fmt.Fprintln(output, "Narration paused.")
		run(commands.Pause)
	case "r", "resume":
		fmt.Fprintln(output, "Narration resumed.")
		run(commands.Resume)
	case "i", "interrupt":
		run(commands.Interrupt)
	case "v", "voice":
		run(commands.Voice)
	case "q", "quit", "stop":
		fmt.Fprintln(output, "Stopping.")
		run(commands.Quit)
		return true
	case "h", "help":
		fmt.Fprintln(output, helpText)
	default:
		fmt.Fprintf(output, "Unknown command %q.\n%s\n", line, helpText)
	}
	return false
}
