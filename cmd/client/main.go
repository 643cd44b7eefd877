// Package main is the GophTasks command-line client.
//
// Usage:
//
//	client [flags] register | login | logout | list | add [name due] | done <id> | delete <id> | shell
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/GophTasks/internal/client/api"
	"github.com/atinyakov/GophTasks/internal/client/storage"
	"github.com/atinyakov/GophTasks/internal/models"
)

var (
	version   string
	buildDate string
)

// app bundles what every command needs.
type app struct {
	client  *api.Client
	state   *storage.LocalStorage
	prompt  *storage.Prompter
	baseURL string
	out     io.Writer
}

// run executes one command.
func (a *app) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "register", "login":
		email, password, err := a.prompt.Credentials()
		if err != nil {
			return err
		}
		if args[0] == "register" {
			err = a.client.Register(ctx, email, password)
		} else {
			err = a.client.Login(ctx, email, password)
		}
		if err != nil {
			return err
		}
		if err := a.state.Capture(a.client.HTTP.Jar, a.baseURL, email); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Logged in as %s\n", email)
		return a.state.Save()
	case "logout":
		if err := a.client.Logout(ctx); err != nil {
			return err
		}
		a.state.Clear()
		fmt.Fprintln(a.out, "You have been logged out.")
		return a.state.Save()
	case "list":
		tasks, err := a.client.ListTasks(ctx)
		if err != nil {
			return err
		}
		printTasks(a.out, tasks)
		return nil
	case "add":
		var name, due string
		if len(args) >= 3 {
			name, due = strings.Join(args[1:len(args)-1], " "), args[len(args)-1]
		} else {
			var err error
			if name, due, err = a.prompt.Task(); err != nil {
				return err
			}
		}
		task, err := a.client.CreateTask(ctx, name, due)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Task %d added\n", task.ID)
		return nil
	case "done":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		finished := true
		if _, err := a.client.UpdateTask(ctx, id, api.TaskPatch{Finished: &finished}); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Task %d finished\n", id)
		return nil
	case "delete":
		id, err := parseID(args)
		if err != nil {
			return err
		}
		if err := a.client.DeleteTask(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Task %d deleted\n", id)
		return nil
	}
	return fmt.Errorf("unknown command: %s", args[0])
}

func parseID(args []string) (int64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: %s <id>", args[0])
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", args[1])
	}
	return id, nil
}

func printTasks(out io.Writer, tasks []models.TaskRecord) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDUE\tDONE")
	for _, t := range tasks {
		done := " "
		if t.Finished {
			done = "x"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Name, t.DueDate, done)
	}
	_ = tw.Flush()
}

// repl runs the interactive shell loop. Commands and their prompts share
// one reader.
func (a *app) repl(ctx context.Context) {
	for {
		line, err := a.prompt.Ask("gophtasks> ")
		if err != nil {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Fprintln(a.out, "Available commands: help, login, logout, list, add [name due], done <id>, delete <id>, exit")
		case "exit":
			fmt.Fprintln(a.out, "Bye")
			return
		default:
			if err := a.run(ctx, args); err != nil {
				fmt.Fprintln(a.out, "error:", err)
			}
		}
	}
}

// main parses command-line flags and dispatches to the requested command.
func main() {
	var (
		baseURL   string
		statePath string
		showVer   bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&statePath, "state", storage.DefaultFile, "path to the session state file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("GophTasks Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("please provide a command: register | login | logout | list | add | done | delete | shell")
	}

	state := storage.New(statePath)
	if err := state.Load(); err != nil {
		log.Fatal(err)
	}
	jar, err := state.Jar(baseURL)
	if err != nil {
		log.Fatal(err)
	}

	a := &app{
		client:  api.New(baseURL, jar),
		state:   state,
		prompt:  storage.NewPrompter(os.Stdin, os.Stdout),
		baseURL: baseURL,
		out:     os.Stdout,
	}

	ctx := context.Background()
	if args[0] == "shell" {
		a.repl(ctx)
		return
	}

	if err := a.run(ctx, args); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			log.Fatal("not logged in, run the login command first")
		}
		log.Fatal(err)
	}
}
