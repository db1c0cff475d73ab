package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	exvhp "github.com/eXhumer/go-eXVHP"
	"github.com/eXhumer/go-eXVHP/internal/config"
	"github.com/eXhumer/go-eXVHP/internal/logging"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

func usage() {
	fmt.Println("Usage: vhp <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  upload     -platform <name> -file <path> [-title t] [-wait]")
	fmt.Println("  status     -platform <name> -id <id>")
	fmt.Println("  resolve    -platform <name> -id <id>")
	fmt.Println("  delete     -platform <name> -id <id or deletehash>")
	fmt.Println("  mirror     -url <video url> | -platform <name> -id <id>")
	fmt.Println("  platforms")
	os.Exit(1)
}

func main() {
	// Load .env file if it exists (try multiple paths)
	for _, path := range []string{".env", "../.env"} {
		_ = godotenv.Load(path)
	}

	if len(os.Args) < 2 {
		usage()
	}

	log, err := logging.New(os.Getenv("VHP_ERROR_LOG"))
	if err != nil {
		panic(err)
	}
	defer log.Close()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM; cancelling aborts in-flight requests.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	opts := []exvhp.Option{
		exvhp.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, exvhp.WithUserAgent(cfg.UserAgent))
	}
	if cfg.ImgurClientID != "" {
		opts = append(opts, exvhp.WithImgurClientID(cfg.ImgurClientID))
	}
	if cfg.StreamableVersion != "" {
		opts = append(opts, exvhp.WithStreamableVersion(cfg.StreamableVersion))
	}
	client := exvhp.New(opts...)

	if err := run(ctx, client, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *exvhp.Client, cfg config.Config, log *logging.Logger, command string, args []string) error {
	switch command {
	case "upload":
		return runUpload(ctx, client, cfg, log, args)
	case "status":
		p, id, err := platformAndID(command, args)
		if err != nil {
			return err
		}
		st, err := client.Status(ctx, p, id)
		if err != nil {
			return err
		}
		log.Infof("%s %s: %s %s", st.Platform, st.ID, st.State, st.URL)
		return nil
	case "resolve":
		p, id, err := platformAndID(command, args)
		if err != nil {
			return err
		}
		u, err := client.Resolve(ctx, p, id)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil
	case "delete":
		p, id, err := platformAndID(command, args)
		if err != nil {
			return err
		}
		if ok, err := client.Supports(p, exvhp.OpDelete); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("%s does not support delete", p)
		}
		if err := client.Delete(ctx, p, id); err != nil {
			return err
		}
		log.Infof("%s %s deleted", p, id)
		return nil
	case "mirror":
		return runMirror(ctx, client, log, args)
	case "platforms":
		for _, p := range client.Platforms() {
			del, _ := client.Supports(p, exvhp.OpDelete)
			fmt.Printf("%-16s delete=%v\n", p, del)
		}
		return nil
	default:
		usage()
		return nil
	}
}

func platformAndID(command string, args []string) (exvhp.Platform, string, error) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	platform := fs.String("platform", "", "target platform")
	id := fs.String("id", "", "platform-native video id")
	fs.Parse(args)

	p := exvhp.Platform(*platform)
	if !p.Valid() || *id == "" {
		return "", "", fmt.Errorf("%s requires -platform (one of %v) and -id", command, knownPlatforms())
	}
	return p, *id, nil
}

func knownPlatforms() []string {
	return lo.Map(exvhp.New().Platforms(), func(p exvhp.Platform, _ int) string {
		return p.String()
	})
}

func runUpload(ctx context.Context, client *exvhp.Client, cfg config.Config, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	platform := fs.String("platform", "", "target platform")
	file := fs.String("file", "", "video file to upload")
	title := fs.String("title", "", "video title (platforms that accept one)")
	wait := fs.Bool("wait", false, "poll status until the video is ready or failed")
	fs.Parse(args)

	p := exvhp.Platform(*platform)
	if !p.Valid() || *file == "" {
		return fmt.Errorf("upload requires -platform (one of %v) and -file", knownPlatforms())
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	res, err := client.Upload(ctx, p, &exvhp.UploadRequest{
		Content:  f,
		Filename: filepath.Base(*file),
		Size:     fi.Size(),
		Title:    *title,
	})
	if err != nil {
		return err
	}

	log.Infof("%s accepted upload, id=%s", res.Platform, res.ID)
	if res.DeleteKey != "" {
		log.Infof("delete key: %s", res.DeleteKey)
	}
	if res.URL != "" {
		fmt.Println(res.URL)
	}

	if !*wait {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.WaitTimeout)
	defer cancel()
	return waitReady(waitCtx, client, cfg.PollInterval, log, p, res.ID)
}

func waitReady(ctx context.Context, client *exvhp.Client, interval time.Duration, log *logging.Logger, p exvhp.Platform, id string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := client.Status(ctx, p, id)
		if err != nil {
			var terr *exvhp.TransportError
			if errors.As(err, &terr) && ctx.Err() == nil {
				log.Errorf("transient: %v", err)
			} else {
				return err
			}
		} else {
			switch st.State {
			case exvhp.StateReady:
				fmt.Println(st.URL)
				return nil
			case exvhp.StateFailed:
				return fmt.Errorf("%s reports processing failed for %s", p, id)
			default:
				log.Infof("%s %s still processing", p, id)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func runMirror(ctx context.Context, client *exvhp.Client, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)
	srcURL := fs.String("url", "", "direct video URL to mirror")
	platform := fs.String("platform", "", "source platform of an existing upload")
	id := fs.String("id", "", "source video id")
	fs.Parse(args)

	var (
		res *exvhp.UploadResult
		err error
	)
	switch {
	case *srcURL != "":
		res, err = client.MirrorFromURL(ctx, *srcURL)
	case *platform != "" && *id != "":
		res, err = client.Mirror(ctx, exvhp.Platform(*platform), *id)
	default:
		return errors.New("mirror requires -url, or -platform and -id")
	}
	if err != nil {
		return err
	}

	log.Infof("juststreamlive accepted mirror, id=%s", res.ID)
	return nil
}
