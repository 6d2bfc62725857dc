package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests provide a recording stub.
type execIface interface {
	Add(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Fav(ctx context.Context, args []string) error
	Stats(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Disconnect(ctx context.Context, args []string) error
	Settings(ctx context.Context, args []string) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
}

const replHelp = `Available commands:
  add [text]              add a prompt (asks for text and tags)
  (l)ist [query]          list prompts, optionally matching query
  tag <tag>...            list prompts carrying every tag
  favs                    list favorite prompts
  show <id>               show a prompt
  edit <id>               edit a prompt
  delete <id>             delete a prompt
  fav <id>                toggle favorite
  stats                   show collection statistics
  sync [pull|push|now|enable|status]
  disconnect              forget the remote credential and turn sync off
  settings [autosync on|off]
  export [file]           export prompts (stdout when no file)
  import <file>           import prompts from an export file
  clear                   delete all local data
  exit | quit`

// runREPL reads commands line by line from reader and dispatches them to
// a. The loop exits on EOF, on "exit"/"quit" or when ctx is done.
//
// Errors returned by handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "jetprompt%s> ", prefixSpace(statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help", "?":
			fmt.Fprintln(out, replHelp)
		case "add":
			cmdErr = a.Add(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "tag":
			cmdErr = a.List(ctx, append([]string{"--tag"}, args...))
		case "favs":
			cmdErr = a.List(ctx, []string{"--favorites"})
		case "show":
			cmdErr = a.Show(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "fav":
			cmdErr = a.Fav(ctx, args)
		case "stats":
			cmdErr = a.Stats(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)
		case "disconnect":
			cmdErr = a.Disconnect(ctx, args)
		case "settings":
			cmdErr = a.Settings(ctx, args)
		case "export":
			cmdErr = a.Export(ctx, args)
		case "import":
			cmdErr = a.Import(ctx, args)
		case "clear":
			cmdErr = a.Clear(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil && !errors.Is(cmdErr, ErrSyncFailed) {
			fmt.Fprintln(out, "Error:", cmdErr)
		}
	}
}

func prefixSpace(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}

// The methods below adapt REPL arguments to App operations, asking for
// whatever is missing.

func (a *App) Add(ctx context.Context, args []string) error {
	text := strings.Join(args, " ")
	if text == "" {
		var err error
		if text, err = GetMultiline(a.reader, "Enter prompt text", a.out); err != nil {
			return err
		}
	}
	tags, err := GetSimpleText(a.reader, "Tags (comma separated, optional)", a.out)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return a.addPrompt(ctx, text, parseTags(tags), false)
}

// List accepts a free text query, or "--tag t..." / "--favorites" as
// produced by the tag and favs shortcuts.
func (a *App) List(ctx context.Context, args []string) error {
	if len(args) > 0 {
		switch args[0] {
		case "--tag":
			return a.listPrompts(ctx, "", args[1:], false)
		case "--favorites":
			return a.listPrompts(ctx, "", nil, true)
		}
	}
	return a.listPrompts(ctx, strings.Join(args, " "), nil, false)
}

func (a *App) Show(ctx context.Context, args []string) error {
	id, err := a.argOrAsk(args, "Enter prompt id")
	if err != nil {
		return err
	}
	return a.showPrompt(ctx, id)
}

func (a *App) Edit(ctx context.Context, args []string) error {
	id, err := a.argOrAsk(args, "Enter prompt id")
	if err != nil {
		return err
	}
	if err := a.showPrompt(ctx, id); err != nil {
		return err
	}

	text, err := GetMultiline(a.reader, "New text (empty line keeps the current text)", a.out)
	if err != nil {
		return err
	}
	rawTags, err := GetSimpleText(a.reader, "New tags, comma separated (empty keeps the current tags)", a.out)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	var tags []string
	if rawTags != "" {
		tags = parseTags(rawTags)
	}
	return a.editPrompt(ctx, id, text, tags)
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := a.argOrAsk(args, "Enter prompt id to delete")
	if err != nil {
		return err
	}
	return a.deletePrompt(ctx, id)
}

func (a *App) Fav(ctx context.Context, args []string) error {
	id, err := a.argOrAsk(args, "Enter prompt id")
	if err != nil {
		return err
	}
	return a.toggleFavorite(ctx, id)
}

func (a *App) Stats(ctx context.Context, _ []string) error {
	return a.showStats(ctx)
}

func (a *App) Sync(ctx context.Context, args []string) error {
	action := "now"
	if len(args) > 0 {
		action = args[0]
	}
	return a.runSync(ctx, action)
}

func (a *App) Disconnect(ctx context.Context, _ []string) error {
	return a.disconnect(ctx)
}

func (a *App) Settings(ctx context.Context, args []string) error {
	if len(args) == 2 && args[0] == "autosync" {
		return a.setAutoSync(ctx, args[1])
	}
	if len(args) > 0 {
		return fmt.Errorf("usage: settings [autosync on|off]")
	}
	return a.showSettings(ctx)
}

func (a *App) Export(ctx context.Context, args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return a.exportTo(ctx, path)
}

func (a *App) Import(ctx context.Context, args []string) error {
	path, err := a.argOrAsk(args, "Path of the file to import")
	if err != nil {
		return err
	}
	return a.importFrom(ctx, path)
}

func (a *App) Clear(ctx context.Context, _ []string) error {
	ok, err := Confirm(a.reader, "Delete ALL local prompts and settings?", a.out)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(a.out, "Cancelled")
		return nil
	}
	return a.clearAll(ctx, true)
}

func (a *App) argOrAsk(args []string, prompt string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	v, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", errors.New("no value entered")
	}
	return v, nil
}
