/*
 * lasercnc motioncore - Local REPL transport.
 *
 * Copyright 2026, The lasercnc Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package console is a local interactive CLI transport: a liner-backed
// read-eval-print loop on the controller's own TTY, for bring-up and
// bench testing without a network peer. It is a third transport beyond
// the two named out of scope in spec.md §1 ("serial line vs. TCP"),
// grounded directly on the teacher's command/reader/reader.go
// (github.com/peterh/liner prompt/history/completion loop wrapped
// around a dispatch call), generalized from the S/370 console command
// set to cli.Dispatch's G-code-plus-realtime-overrides grammar.
package console

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterh/liner"

	"github.com/lasercnc/motioncore/internal/cli"
)

// commandWords feeds the completer; kept short and static like the
// teacher's command set rather than discovered from a registry, since
// G-code words are not a fixed verb list the way console commands are.
var commandWords = []string{"$H", "$T", "$SLP", "$C", "$"}

// completeCommand implements liner's completer contract: every
// command word sharing partial's prefix, case-insensitively.
func completeCommand(partial string) []string {
	var out []string
	upper := strings.ToUpper(partial)
	for _, w := range commandWords {
		if strings.HasPrefix(w, upper) {
			out = append(out, w)
		}
	}
	return out
}

// Run drives one liner-backed REPL on the given Machine until the
// user aborts (Ctrl-D/Ctrl-C) or the input stream closes, matching
// the teacher's ConsoleReader loop shape. prompt is typically
// "lasercnc> ".
func Run(m cli.Machine, version, prompt string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	fmt.Println(cli.Banner(version))

	for {
		text, err := line.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			log.Error("console: error reading line", "err", err)
			return
		}

		line.AppendHistory(text)
		reply := cli.Dispatch(m, text)
		if reply != "" {
			fmt.Println(reply)
		}
	}
}
