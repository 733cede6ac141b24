/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package batch runs a staged workload from a command file, used to put
// load or observers next to the exerciser while a leap transition fires.
//
// File format, one command per line:
//
//	echo hello
//	echo hello @10
//	dmesg | grep leap
//
// A trailing @N sleeps N seconds after launching the command. A single |
// pipes the first command's stdout into the second. Blank lines are
// skipped.
package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Command is one line of a batch file.
type Command struct {
	Argv []string
	// PipeTo, when non-empty, receives Argv's stdout on its stdin.
	PipeTo []string
	// Delay to wait after launching before moving to the next line.
	Delay time.Duration
}

// ParseFile reads a batch file from disk.
func ParseFile(path string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the command list from r.
func Parse(r io.Reader) ([]Command, error) {
	var cmds []Command
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		cmds = append(cmds, cmd)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cmds, nil
}

func parseLine(line string) (Command, error) {
	var cmd Command
	if at := strings.LastIndex(line, "@"); at >= 0 {
		secs, err := strconv.ParseFloat(strings.TrimSpace(line[at+1:]), 64)
		if err != nil {
			return cmd, fmt.Errorf("bad delay %q: %w", line[at+1:], err)
		}
		cmd.Delay = time.Duration(secs * float64(time.Second))
		line = strings.TrimSpace(line[:at])
	}
	parts := strings.Split(line, "|")
	switch len(parts) {
	case 1:
		cmd.Argv = strings.Fields(parts[0])
	case 2:
		cmd.Argv = strings.Fields(parts[0])
		cmd.PipeTo = strings.Fields(parts[1])
		if len(cmd.PipeTo) == 0 {
			return cmd, fmt.Errorf("empty pipe target")
		}
	default:
		return cmd, fmt.Errorf("only a single pipe is supported")
	}
	if len(cmd.Argv) == 0 {
		return cmd, fmt.Errorf("empty command")
	}
	return cmd, nil
}

// Run launches the commands in order. Plain commands are started and left
// running; piped pairs are waited on so their output is complete before
// the next line starts. Delays apply after the launch.
func Run(ctx context.Context, cmds []Command) error {
	for _, cmd := range cmds {
		var err error
		if len(cmd.PipeTo) > 0 {
			err = runPiped(ctx, cmd)
		} else {
			err = launch(ctx, cmd)
		}
		if err != nil {
			return err
		}
		if cmd.Delay > 0 {
			log.Debugf("waiting %s", cmd.Delay)
			select {
			case <-time.After(cmd.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func launch(ctx context.Context, cmd Command) error {
	log.Infof("running %q", strings.Join(cmd.Argv, " "))
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", cmd.Argv[0], err)
	}
	// reap without blocking the batch
	go func() {
		if err := c.Wait(); err != nil {
			log.Warningf("%q: %v", cmd.Argv[0], err)
		}
	}()
	return nil
}

func runPiped(ctx context.Context, cmd Command) error {
	log.Infof("running %q | %q", strings.Join(cmd.Argv, " "), strings.Join(cmd.PipeTo, " "))
	producer := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	consumer := exec.CommandContext(ctx, cmd.PipeTo[0], cmd.PipeTo[1:]...)

	pipe, err := producer.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piping %q: %w", cmd.Argv[0], err)
	}
	consumer.Stdin = pipe
	consumer.Stdout = os.Stdout
	consumer.Stderr = os.Stderr

	if err := producer.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", cmd.Argv[0], err)
	}
	if err := consumer.Start(); err != nil {
		_ = producer.Wait()
		return fmt.Errorf("starting %q: %w", cmd.PipeTo[0], err)
	}
	if err := producer.Wait(); err != nil {
		log.Warningf("%q: %v", cmd.Argv[0], err)
	}
	if err := consumer.Wait(); err != nil {
		return fmt.Errorf("waiting for %q: %w", cmd.PipeTo[0], err)
	}
	return nil
}
