package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"room-relay/client"
	"room-relay/domain"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := client.LoadConfig()
	if err != nil {
		return 1, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Session with a terminal renderer
	session := client.NewSession(config, log, render)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() { _ = session.Run(ctx) }()

	printHelp()

	// 3. Command loop: slash commands manage rooms, anything else posts
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			stop()
			break
		}
		if err := handle(session, line); err != nil {
			color.Red.Println("Error:", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return 1, fmt.Errorf("reading input failed: %w", err)
	}
	return 0, nil
}

func handle(session *client.Session, line string) error {
	if !strings.HasPrefix(line, "/") {
		return session.PostMessage(line)
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "/rooms":
		render(client.Snapshot{
			Mode:     session.Mode(),
			Rooms:    session.Rooms(),
			Current:  session.Current(),
			Username: session.Username(),
		})
	case "/join":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /join <room-id>")
		}
		return session.SetCurrent(domain.RoomID(fields[1]))
	case "/create":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /create <name>")
		}
		room, err := session.CreateRoom(strings.Join(fields[1:], " "))
		if err != nil {
			return err
		}
		color.Green.Println("Created and joined", room.ID)
	case "/rename":
		if len(fields) < 3 {
			return fmt.Errorf("usage: /rename <room-id> <name>")
		}
		return session.RenameRoom(domain.RoomID(fields[1]), strings.Join(fields[2:], " "))
	case "/delete":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /delete <room-id>")
		}
		return session.DeleteRoom(domain.RoomID(fields[1]))
	case "/user":
		if len(fields) < 2 {
			return fmt.Errorf("usage: /user <name>")
		}
		session.SetUsername(fields[1])
	case "/help":
		printHelp()
	default:
		return fmt.Errorf("unknown command %s", fields[0])
	}
	return nil
}

// render redraws the room table after every state change.
func render(snap client.Snapshot) {
	if snap.Mode == client.ModeOnline {
		color.Green.Println("● ONLINE")
	} else {
		color.Red.Println("● OFFLINE (edits are kept locally)")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"", "ID", "Name", "From", "Message", "At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, room := range snap.Rooms {
		marker := ""
		if room.ID == snap.Current {
			marker = ">"
		}
		row := []string{marker, string(room.ID), room.Name, "", "", ""}
		if msg, ok := room.Current(); ok {
			row[3], row[4], row[5] = msg.Username, msg.Text, msg.Timestamp
		}
		table.Append(row)
	}
	table.Render()
	fmt.Printf("[%s] ", snap.Username)
}

func printHelp() {
	fmt.Println("Commands: /rooms /join <id> /create <name> /rename <id> <name> /delete <id> /user <name> /quit")
	fmt.Println("Anything else is posted to the current room.")
}
