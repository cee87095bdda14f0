// Package main provides the remote-control CLI for the player.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/tapedeck/internal/api/connect"
	tapedeckv1 "github.com/osa030/tapedeck/internal/api/tapedeckv1"
	"github.com/osa030/tapedeck/internal/api/tapedeckv1/tapedeckv1connect"
)

var (
	app    = kingpin.New("tapedeck-playercli", "tapedeck player remote control")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token").Envar("API_TOKEN").Required().String()

	statusCmd = app.Command("status", "Show player state and queue")
	nowCmd    = app.Command("now", "Show the current track")

	loadCmd     = app.Command("load", "Replace the queue")
	loadShuffle = loadCmd.Flag("shuffle", "Start shuffled").Short('s').Bool()

	loadRandomCmd  = loadCmd.Command("random", "Random songs from the library")
	loadRandomSize = loadRandomCmd.Arg("size", "Number of songs (0 = configured size)").Default("0").Int()

	loadPlaylistCmd = loadCmd.Command("playlist", "A playlist from the library")
	loadPlaylistID  = loadPlaylistCmd.Arg("id", "Playlist ID").Required().String()

	loadAlbumCmd = loadCmd.Command("album", "An album from the library")
	loadAlbumID  = loadAlbumCmd.Arg("id", "Album ID").Required().String()

	loadMixCmd  = loadCmd.Command("mix", "An instant mix seeded from the current queue")
	loadMixSize = loadMixCmd.Arg("size", "Number of songs (0 = configured size)").Default("0").Int()

	playCmd  = app.Command("play", "Resume playback")
	pauseCmd = app.Command("pause", "Pause playback")
	nextCmd  = app.Command("next", "Skip to the next track")
	prevCmd  = app.Command("prev", "Go back to the previous track")

	jumpCmd   = app.Command("jump", "Jump to a queue index")
	jumpIndex = jumpCmd.Arg("index", "Queue index (0-based)").Required().Int()

	repeatCmd  = app.Command("repeat", "Set the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "Repeat mode").Required().Enum("off", "one", "all")

	shuffleCmd   = app.Command("shuffle", "Turn shuffle on or off")
	shuffleState = shuffleCmd.Arg("state", "on or off").Required().Enum("on", "off")

	stopCmd = app.Command("stop", "Stop and clear the queue")

	watchCmd      = app.Command("watch", "Stream player notifications")
	watchProgress = watchCmd.Flag("progress", "Include progress notifications").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := tapedeckv1connect.NewPlayerServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)),
	)

	ctx := context.Background()
	empty := func() *connect.Request[tapedeckv1.Empty] {
		return connect.NewRequest(&tapedeckv1.Empty{})
	}

	switch command {
	case statusCmd.FullCommand():
		resp, err := client.GetStatus(ctx, empty())
		exitOnError(err)
		printState(resp.Msg.State, true)
	case nowCmd.FullCommand():
		nowPlaying(ctx, client)
	case loadRandomCmd.FullCommand():
		load(ctx, client, &tapedeckv1.LoadRequest{Source: tapedeckv1.SourceRandom, Size: *loadRandomSize})
	case loadPlaylistCmd.FullCommand():
		load(ctx, client, &tapedeckv1.LoadRequest{Source: tapedeckv1.SourcePlaylist, ID: *loadPlaylistID})
	case loadAlbumCmd.FullCommand():
		load(ctx, client, &tapedeckv1.LoadRequest{Source: tapedeckv1.SourceAlbum, ID: *loadAlbumID})
	case loadMixCmd.FullCommand():
		load(ctx, client, &tapedeckv1.LoadRequest{Source: tapedeckv1.SourceMix, Size: *loadMixSize})
	case playCmd.FullCommand():
		printResult(client.Play(ctx, empty()))
	case pauseCmd.FullCommand():
		printResult(client.Pause(ctx, empty()))
	case nextCmd.FullCommand():
		printResult(client.Next(ctx, empty()))
	case prevCmd.FullCommand():
		printResult(client.Previous(ctx, empty()))
	case jumpCmd.FullCommand():
		printResult(client.JumpTo(ctx, connect.NewRequest(&tapedeckv1.JumpToRequest{Index: *jumpIndex})))
	case repeatCmd.FullCommand():
		printResult(client.SetRepeat(ctx, connect.NewRequest(&tapedeckv1.SetRepeatRequest{Mode: *repeatMode})))
	case shuffleCmd.FullCommand():
		printResult(client.SetShuffle(ctx, connect.NewRequest(&tapedeckv1.SetShuffleRequest{Enabled: *shuffleState == "on"})))
	case stopCmd.FullCommand():
		printResult(client.Stop(ctx, empty()))
	case watchCmd.FullCommand():
		watch(ctx, client, *watchProgress)
	}
}

func load(ctx context.Context, client tapedeckv1connect.PlayerServiceClient, req *tapedeckv1.LoadRequest) {
	req.Shuffle = *loadShuffle
	resp, err := client.Load(ctx, connect.NewRequest(req))
	exitOnError(err)

	fmt.Printf("Loaded %d tracks from %s\n", resp.Msg.Count, req.Source)
	for code, n := range resp.Msg.Rejected {
		fmt.Printf("  rejected %d (%s)\n", n, code)
	}
	printState(resp.Msg.State, true)
}

func nowPlaying(ctx context.Context, client tapedeckv1connect.PlayerServiceClient) {
	resp, err := client.NowPlaying(ctx, connect.NewRequest(&tapedeckv1.Empty{}))
	if connect.CodeOf(err) == connect.CodeFailedPrecondition {
		fmt.Println("No track currently playing")
		return
	}
	exitOnError(err)

	n := resp.Msg
	marker := "[paused]"
	if n.Playing {
		marker = "[playing]"
	}
	fmt.Printf("%s %s\n", marker, formatTrack(n.Entry.Track))
	fmt.Printf("  %s / %s (%.0f%%)\n",
		formatMs(n.PositionMs), formatMs(n.Entry.Track.DurationMs), n.Progress*100)
}

func watch(ctx context.Context, client tapedeckv1connect.PlayerServiceClient, withProgress bool) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := client.Subscribe(ctx, connect.NewRequest(&tapedeckv1.SubscribeRequest{WithProgress: withProgress}))
	exitOnError(err)
	defer stream.Close()

	fmt.Println("Watching player notifications (Ctrl+C to stop)...")
	for stream.Receive() {
		n := stream.Msg()
		ts := n.Timestamp.Local().Format("15:04:05")
		switch n.Type {
		case tapedeckv1.NotificationProgress:
			fmt.Printf("[%s] #%d progress %s (%.0f%%)\n", ts, n.SequenceNo, formatMs(n.State.PositionMs), n.State.Progress*100)
		case tapedeckv1.NotificationTrackChanged:
			name := "(none)"
			if n.State.Current != nil {
				name = formatTrack(n.State.Current.Track)
			}
			fmt.Printf("[%s] #%d track_changed [%d] %s\n", ts, n.SequenceNo, n.State.Index, name)
		case tapedeckv1.NotificationInitialState, tapedeckv1.NotificationQueueLoaded:
			fmt.Printf("[%s] #%d %s\n", ts, n.SequenceNo, n.Type)
			printState(n.State, true)
		default:
			fmt.Printf("[%s] #%d %s state=%s shuffle=%v repeat=%s\n",
				ts, n.SequenceNo, n.Type, n.State.State, n.State.Shuffle, n.State.Repeat)
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		exitOnError(err)
	}
}

func printResult(resp *connect.Response[tapedeckv1.StateResponse], err error) {
	exitOnError(err)
	printState(resp.Msg.State, false)
}

func printState(s *tapedeckv1.PlayerState, withQueue bool) {
	if s == nil {
		return
	}
	fmt.Printf("State: %s  shuffle=%v  repeat=%s\n", s.State, s.Shuffle, s.Repeat)
	if s.Current != nil {
		fmt.Printf("Current: [%d] %s  %s / %s\n",
			s.Index, formatTrack(s.Current.Track), formatMs(s.PositionMs), formatMs(s.Current.Track.DurationMs))
	}
	if !withQueue || len(s.Entries) == 0 {
		return
	}

	fmt.Printf("\nQueue (%d):\n", len(s.Entries))
	for i, e := range s.Entries {
		marker := " "
		if i == s.Index {
			marker = ">"
		}
		fmt.Printf(" %s %3d  %-50s %s\n", marker, i, formatTrack(e.Track), formatMs(e.Track.DurationMs))
	}
}

func formatTrack(t tapedeckv1.Track) string {
	parts := []string{t.Title}
	if t.Artist != "" {
		parts = append(parts, t.Artist)
	}
	return strings.Join(parts, " - ")
}

func formatMs(ms int64) string {
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
