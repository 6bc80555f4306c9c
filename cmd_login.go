package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/commentcrawl/internal/cookies"
)

const defaultLoginURL = "https://www.toutiao.com/"

var loginCmd = &cobra.Command{
	Use:   "login [url]",
	Short: "Log in in a visible browser and keep the session for crawls",
	Long: `Opens a browser window at url (default: the Toutiao home page). Log in,
then press Enter here; the cookies are stored and replayed by crawls when
crawl.use_cookies is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored browser session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := cookieManager()
		if err != nil {
			return err
		}
		if err := m.Logout(); err != nil {
			return err
		}
		fmt.Println("Stored session cleared.")
		return nil
	},
}

func cookieManager() (*cookies.Manager, error) {
	path, err := cookies.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	return cookies.NewManager(cookies.NewStore(path)), nil
}

// waitForEnter returns once the user presses Enter or ctx is done
func waitForEnter(ctx context.Context) error {
	fmt.Println("Log in in the browser window, then press Enter here...")
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	url := defaultLoginURL
	if len(args) > 0 {
		url = args[0]
	}

	m, err := cookieManager()
	if err != nil {
		return err
	}
	if err := m.Login(context.Background(), url, waitForEnter); err != nil {
		return err
	}

	fmt.Println("Session saved. Set crawl.use_cookies = true to use it.")
	return nil
}
