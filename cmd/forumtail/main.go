// Command forumtail follows one forum from the terminal: it opens a
// realtime channel, prints the backlog and every live event, and posts
// lines typed on stdin as messages.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fanforge/forum-service/internal/domain"
	"github.com/fanforge/forum-service/internal/realtime"
	"github.com/fanforge/forum-service/pkg/logger"
)

func main() {
	var (
		baseURL = flag.String("base", "http://localhost:8080", "forum service HTTP root")
		token   = flag.String("token", os.Getenv("FORUM_TOKEN"), "bearer access token")
		userID  = flag.String("user", os.Getenv("FORUM_USER"), "user id behind the token")
		forumID = flag.String("forum", "", "forum id to follow")
		send    = flag.Bool("send", false, "post stdin lines as messages")
	)
	flag.Parse()

	if *forumID == "" || *token == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: forumtail -forum <id> -token <jwt> -user <id> [-base url] [-send]")
		os.Exit(2)
	}

	logger.Init(logger.Config{Service: "forumtail"})

	client, err := realtime.New(realtime.Options{
		BaseURL: *baseURL,
		Token:   *token,
		UserID:  *userID,
		Logger:  logger.L(),
	})
	if err != nil {
		log.Fatalf("client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	ch, err := client.Open(ctx, *forumID, realtime.Handlers{
		OnInsert: func(m domain.Message) {
			printMessage(m)
		},
		OnPinned: func(m domain.Message) {
			fmt.Printf("* pinned: %s\n", firstLine(m.Content))
		},
		OnPresence: func(peers []realtime.Peer) {
			names := make([]string, 0, len(peers))
			for _, p := range peers {
				names = append(names, p.DisplayName)
			}
			fmt.Printf("* online (%d): %s\n", len(peers), strings.Join(names, ", "))
		},
		OnPeerJoined: func(id string) { fmt.Printf("* joined: %s\n", id) },
		OnPeerLeft:   func(id string) { fmt.Printf("* left: %s\n", id) },
		OnTyping: func(ev realtime.TypingEvent) {
			who := ev.Label
			if who == "" {
				who = ev.UserID
			}
			fmt.Printf("* %s is typing\n", who)
		},
		OnStatus: func(s realtime.Status) {
			fmt.Printf("* channel %s\n", s)
		},
	})
	cancel()
	if err != nil {
		log.Fatalf("open forum %s: %v", *forumID, err)
	}

	for _, th := range ch.Snapshot() {
		printMessage(th.Message)
		for _, reply := range th.Replies {
			printMessage(reply)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *send {
		go func() {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				_ = ch.SendTyping("")
				sendCtx, sendCancel := context.WithTimeout(context.Background(), 10*time.Second)
				if _, err := ch.Send(sendCtx, line, nil, nil); err != nil {
					fmt.Fprintf(os.Stderr, "send: %v\n", err)
				}
				sendCancel()
			}
			sigCh <- syscall.SIGTERM
		}()
	}

	<-sigCh
	_ = ch.Close()
}

func printMessage(m domain.Message) {
	name := m.AuthorName
	if name == "" {
		name = m.AuthorID
	}
	prefix := ""
	if m.ParentID != nil {
		prefix = "  ↳ "
	}
	fmt.Printf("%s[%s] %s: %s\n", prefix, m.CreatedAt.Format("15:04:05"), name, firstLine(m.Content))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}
