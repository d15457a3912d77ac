package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	rootCmd   = &cobra.Command{
		Use:   "media-fetch",
		Short: "Media-Fetch CLI - download remote audio/video with live progress",
		Long:  `A command-line client for the media-fetch server: inspect media, start downloads, and watch their progress.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	addCmd.Flags().String("format", "best", "Format identifier to download")
	addCmd.Flags().Bool("combined", false, "Hint that the format already contains audio and video")
	addCmd.Flags().Bool("no-watch", false, "Create the download without watching progress")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info [url]",
	Short: "Show a media resource's metadata and selectable formats",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		endpoint := serverURL + "/api/v1/media/info?url=" + url.QueryEscape(args[0])
		resp, err := http.Get(endpoint)
		if err != nil {
			fatal("Failed to contact server: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			fatal("Server error: %s", strings.TrimSpace(string(body)))
		}

		var info struct {
			Title               string `json:"title"`
			Author              string `json:"author"`
			RequiresCredentials bool   `json:"requires_credentials"`
			Formats             []struct {
				ID         string `json:"id"`
				Ext        string `json:"ext"`
				Note       string `json:"note"`
				Resolution string `json:"resolution"`
				HasAudio   bool   `json:"has_audio"`
				AudioOnly  bool   `json:"audio_only"`
			} `json:"formats"`
		}
		if err := json.Unmarshal(body, &info); err != nil {
			fatal("Malformed response: %v", err)
		}

		fmt.Printf("Title:  %s\n", info.Title)
		fmt.Printf("Author: %s\n", info.Author)
		fmt.Printf("Requires credentials: %v\n\n", info.RequiresCredentials)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEXT\tRESOLUTION\tNOTE\tAUDIO")
		for _, f := range info.Formats {
			audio := "video-only"
			if f.AudioOnly {
				audio = "audio-only"
			} else if f.HasAudio {
				audio = "combined"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.ID, f.Ext, f.Resolution, f.Note, audio)
		}
		w.Flush()
	},
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Start a download and watch its progress",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		formatID, _ := cmd.Flags().GetString("format")
		combined, _ := cmd.Flags().GetBool("combined")
		noWatch, _ := cmd.Flags().GetBool("no-watch")

		payload := map[string]interface{}{
			"url":       args[0],
			"format_id": formatID,
		}
		if combined {
			payload["combined_hint"] = true
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/downloads", "application/json", bytes.NewReader(data))
		if err != nil {
			fatal("Failed to contact server: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fatal("Server error: %s", strings.TrimSpace(string(body)))
		}

		var created struct {
			Download struct {
				ID string `json:"id"`
			} `json:"download"`
		}
		if err := json.Unmarshal(body, &created); err != nil {
			fatal("Malformed response: %v", err)
		}

		fmt.Printf("Download created: %s\n", created.Download.ID)
		if noWatch {
			return
		}
		if watchDownload(created.Download.ID) {
			fmt.Printf("Fetch it from %s/api/v1/downloads/%s/file\n", serverURL, created.Download.ID)
		}
	},
}

// watchDownload consumes the server's event stream and renders progress
// until a terminal event arrives. It reports whether the download
// completed successfully.
func watchDownload(id string) bool {
	resp, err := http.Get(serverURL + "/api/v1/downloads/" + id + "/events")
	if err != nil {
		fatal("Failed to open event stream: %v", err)
	}
	defer resp.Body.Close()

	var eventName string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if done := renderEvent(eventName, data); done {
				return eventName == "complete"
			}
		}
	}
	return false
}

// renderEvent prints one event and reports whether it was terminal.
func renderEvent(name, data string) bool {
	var payload struct {
		Progress int    `json:"progress"`
		Message  string `json:"message"`
		Filename string `json:"filename"`
	}
	_ = json.Unmarshal([]byte(data), &payload)

	switch name {
	case "start":
		fmt.Println("Downloading...")
	case "progress":
		fmt.Printf("\r%3d%%", payload.Progress)
	case "merging":
		fmt.Printf("\r%s\n", payload.Message)
	case "complete":
		fmt.Printf("\rDone: %s\n", payload.Filename)
		return true
	case "error":
		fmt.Printf("\rFailed: %s\n", payload.Message)
		return true
	}
	return false
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List download history",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/downloads")
		if err != nil {
			fatal("Failed to contact server: %v", err)
		}
		defer resp.Body.Close()

		var downloads []struct {
			ID       string `json:"id"`
			URL      string `json:"url"`
			FormatID string `json:"format_id"`
			Status   string `json:"status"`
			Progress int    `json:"progress"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&downloads); err != nil {
			fatal("Malformed response: %v", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tFORMAT\tURL")
		for _, d := range downloads {
			fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\n", shortID(d.ID), d.Status, d.Progress, d.FormatID, d.URL)
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/downloads/stats")
		if err != nil {
			fatal("Failed to contact server: %v", err)
		}
		defer resp.Body.Close()

		var stats map[string]int64
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			fatal("Malformed response: %v", err)
		}
		for _, key := range []string{"total", "active", "completed", "failed", "cancelled"} {
			fmt.Printf("%-10s %d\n", key, stats[key])
		}
	},
}

// shortID truncates an identifier for table display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
