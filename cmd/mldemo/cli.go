package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chriskillpack/mldemo"
	"github.com/schollz/progressbar/v3"
)

// cli runs a single demo invocation from the command line.
type cli struct {
	demos  *mldemo.Demos
	db     *mldemo.DB // optional
	out    io.Writer
	status io.Writer // spinner output
}

// spin shows an indeterminate spinner labelled desc until the returned
// function is called.
func (c *cli) spin(desc string) func() {
	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(c.status),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				bar.Add(1)
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		bar.Finish()
	}
}

func (c *cli) caption(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", path)
	}

	run := mldemo.NewRun("caption", c.demos.CaptionBackend)
	run.Model = c.demos.CaptionModel
	run.Input = path

	stop := c.spin("Captioning " + path)
	_, caption, err := mldemo.CaptionImage(ctx, c.demos.NewCaptioner, data)
	stop()
	if err != nil {
		return err
	}

	return c.finish(ctx, run, caption)
}

func (c *cli) ask(ctx context.Context, query string) error {
	run := mldemo.NewRun("ask", c.demos.AnswerBackend)
	run.Input = query

	stop := c.spin("Retrieving and answering")
	answer, err := mldemo.AskQuestion(ctx, c.demos.NewAnswerer, query)
	stop()
	if err != nil {
		return err
	}

	return c.finish(ctx, run, answer)
}

func (c *cli) generate(ctx context.Context, prompt, model string) error {
	tag, err := mldemo.ParseModelTag(model)
	if err != nil {
		return err
	}

	run := mldemo.NewRun("generate", c.demos.GenerateBackend)
	run.Model = tag.String()
	run.Input = prompt

	stop := c.spin("Generating with " + tag.String())
	text, err := mldemo.GenerateText(ctx, c.demos.NewGenerator, prompt, tag)
	stop()
	if err != nil {
		return err
	}

	return c.finish(ctx, run, text)
}

func (c *cli) finish(ctx context.Context, run *mldemo.Run, result string) error {
	run.Finish(result)
	fmt.Fprintln(c.out, strings.TrimRight(result, "\n"))

	if c.db != nil {
		if err := c.db.RecordRun(ctx, run); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
	}
	return nil
}
