// Command bottest opens bot.sannysoft.com in a browser using the same
// stealth options as the crawler, allowing you to audit the browser fingerprint.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/browser"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
)

func main() {
	driver := flag.String("driver", browser.DriverChromedp, "browser driver: chromedp or rod")
	url := flag.String("url", "https://bot.sannysoft.com", "fingerprint test page")
	flag.Parse()

	logger, err := logging.New(false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	// non-headless so you can see it
	launcher, err := browser.New(*driver, browser.Settings{Headless: false})
	if err != nil {
		logger.Fatal("Unknown driver", zap.Error(err))
	}

	ctx, page, release, err := launcher.Launch(context.Background())
	if err != nil {
		logger.Fatal("Failed to launch browser", zap.Error(err))
	}
	defer release()

	logger.Info("Opening fingerprint test page", zap.String("driver", *driver), zap.String("url", *url))
	if err := page.Navigate(ctx, *url); err != nil {
		logger.Error("Failed to navigate", zap.Error(err))
		return
	}

	fmt.Println("Press Enter to close the browser...")
	bufio.NewReader(os.Stdin).ReadString('\n')

	logger.Info("Done")
}
