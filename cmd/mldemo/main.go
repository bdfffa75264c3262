package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chriskillpack/mldemo"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath    = flag.String("config", "", "Path to YAML config file")
	generateModel = flag.String("model", mldemo.GPT2.String(), "Model for the generate command: gpt2 or distilgpt2")
)

func init() {
	registerConfigFlags(flag.CommandLine)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: mldemo [command] [flags] [args]\n\n")
	fmt.Fprintf(out, "Flags may appear anywhere; arguments after -- are never flags.\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  serve              run the web UI (default)\n")
	fmt.Fprintf(out, "  caption FILE       caption a JPEG or PNG image\n")
	fmt.Fprintf(out, "  ask QUESTION       answer a question from the knowledge base\n")
	fmt.Fprintf(out, "  generate PROMPT    continue a prompt, see -model\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}

// parseCommandLine parses args with fs, allowing flags anywhere after the
// command name. It returns the command, "serve" if none is given, and its
// positional arguments. Everything after "--" is positional.
func parseCommandLine(fs *flag.FlagSet, args []string) (string, []string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return "", nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if n := len(args) - len(rest); n > 0 && args[n-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}

	if len(positional) == 0 {
		return "serve", nil, nil
	}
	return positional[0], positional[1:], nil
}

func serve(ctx, drain context.Context, d *mldemo.Demos, db *mldemo.DB, port string) error {
	srv := NewServer(d, db, port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listening on %s\n", srv.hs.Addr)
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-drain.Done():
		case <-gctx.Done():
		}

		sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

func run(ctx, drain context.Context, cfg *Config, d *mldemo.Demos, cmd string, args []string) error {
	var db *mldemo.DB
	if cfg.DB != "" {
		var err error
		if db, err = mldemo.NewDB(ctx, cfg.DB); err != nil {
			return err
		}
		defer db.Close()
	}

	c := &cli{demos: d, db: db, out: os.Stdout, status: os.Stderr}
	switch cmd {
	case "serve":
		return serve(ctx, drain, d, db, cfg.Port)
	case "caption":
		if len(args) != 1 {
			return fmt.Errorf("caption takes one image path")
		}
		return c.caption(drain, args[0])
	case "ask":
		return c.ask(drain, strings.Join(args, " "))
	case "generate":
		return c.generate(drain, strings.Join(args, " "), *generateModel)
	}

	return fmt.Errorf("unknown command %q", cmd)
}

// sighandler starts a graceful stop on the first SIGINT and cancels
// everything on the second.
func sighandler(ch chan os.Signal, stop, cancel context.CancelFunc) {
	lameduck := false
	for {
		<-ch
		if lameduck {
			// Already in lame duck, hard stop
			fmt.Println("Exiting")
			cancel()
			return
		}
		fmt.Println("SIGINT received, stopping...")
		lameduck = true
		stop()
	}
}

func main() {
	flag.Usage = usage
	cmd, args, err := parseCommandLine(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	// A missing .env is fine, the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.applyFlags(flag.CommandLine); err != nil {
		log.Fatal(err)
	}
	mio, err := cfg.initOptions()
	if err != nil {
		log.Fatal(err)
	}

	d, err := mldemo.Init(mio)
	if err != nil {
		log.Fatal(err)
	}

	sigch := make(chan os.Signal, 2)
	signal.Notify(sigch, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	drain, stop := context.WithCancel(ctx)
	go sighandler(sigch, stop, cancel)

	if err := run(ctx, drain, cfg, d, cmd, args); err != nil {
		log.Fatal(err)
	}
}
