package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JWilliamson45/chord/client"
	"github.com/JWilliamson45/chord/keyset"
	"github.com/pkg/errors"
)

const menuText = `Welcome to JW's Chord DHT simulation.
Please enter one of the following commands:
  "addnode" - Add a new node to the DHT
  "dump"    - Display the content topology of the DHT
  "addkey"  - Add a key to the DHT
  "delkey"  - Delete a key from the DHT
  "menu"    - Redisplay this menu on the terminal
  "debug"   - Toggle debug messages (developer only)
  "exit"    - Exit the program
`

const (
	promptAddKey    = "Enter a key value to add to the DHT (must be between 0-63, inclusive).\n"
	promptDelKey    = "Enter a key value to delete from the DHT (must be between 0-63, inclusive).\n"
	inputError      = "Invalid input. You must enter a value between 0-63, inclusive.\n"
	unrecognizedCmd = "Command not recognized; please try again\n"
)

// Commander is the part of the client the menu drives.
type Commander interface {
	AddNode(ctx context.Context) (int, error)
	AddNodeWithID(ctx context.Context, id int) error
	AddKey(ctx context.Context, key int) error
	DeleteKey(ctx context.Context, key int) error
	Dump(ctx context.Context) error
	ToggleDebug(ctx context.Context) (bool, error)
}

type Menu struct {
	in  *bufio.Scanner
	out io.Writer
	cmd Commander
}

func NewMenu(in io.Reader, out io.Writer, cmd Commander) *Menu {
	return &Menu{
		in:  bufio.NewScanner(in),
		out: out,
		cmd: cmd,
	}
}

// Run serves commands until "exit", end of input or ctx is done.
func (menu *Menu) Run(ctx context.Context) error {
	io.WriteString(menu.out, menuText)
	for ctx.Err() == nil {
		line, ok := menu.readLine()
		if !ok {
			return menu.in.Err()
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		switch fields[0] {
		case "addnode":
			menu.addNode(ctx, arg)
		case "dump":
			if err := menu.cmd.Dump(ctx); err != nil {
				fmt.Fprintf(menu.out, "Unable to dump: %v\n", err)
			}
		case "addkey":
			menu.addKey(ctx, arg)
		case "delkey":
			menu.deleteKey(ctx, arg)
		case "menu":
			io.WriteString(menu.out, menuText)
		case "debug":
			menu.toggleDebug(ctx)
		case "exit":
			return nil
		default:
			io.WriteString(menu.out, unrecognizedCmd)
		}
	}
	return ctx.Err()
}

func (menu *Menu) readLine() (string, bool) {
	if !menu.in.Scan() {
		return "", false
	}
	return menu.in.Text(), true
}

func (menu *Menu) addNode(ctx context.Context, arg string) {
	var err error
	if arg == "" {
		_, err = menu.cmd.AddNode(ctx)
	} else {
		id, perr := strconv.Atoi(arg)
		if perr != nil {
			io.WriteString(menu.out, "Invalid input. You must enter a node id between 0-62, inclusive.\n")
			return
		}
		err = menu.cmd.AddNodeWithID(ctx, id)
	}

	switch errors.Cause(err) {
	case nil:
		io.WriteString(menu.out, "New node added!\n")
	case client.ErrRingFull:
		io.WriteString(menu.out, "Unable to add node: the DHT has reached the maximum number of nodes\n")
	default:
		fmt.Fprintf(menu.out, "Unable to add node: %v\n", err)
	}
}

// readKey takes the key from arg, or prompts for it.
func (menu *Menu) readKey(arg string, prompt string) (int, bool) {
	if arg == "" {
		io.WriteString(menu.out, prompt)
		line, ok := menu.readLine()
		if !ok {
			return 0, false
		}
		arg = strings.TrimSpace(line)
	}
	key, err := strconv.Atoi(arg)
	if err != nil || !keyset.Valid(key) {
		io.WriteString(menu.out, inputError)
		return 0, false
	}
	return key, true
}

func (menu *Menu) addKey(ctx context.Context, arg string) {
	key, ok := menu.readKey(arg, promptAddKey)
	if !ok {
		return
	}
	err := menu.cmd.AddKey(ctx, key)
	switch errors.Cause(err) {
	case nil:
		fmt.Fprintf(menu.out, "New key <%d> added!\n", key)
	case client.ErrKeyExists:
		fmt.Fprintf(menu.out, "Unable to add key: <%d> is already in the DHT\n", key)
	case client.ErrInvalidKey:
		fmt.Fprintf(menu.out, "Unable to add key: <%d> is an invalid key value\n", key)
	default:
		fmt.Fprintf(menu.out, "Unable to add key: %v\n", err)
	}
}

func (menu *Menu) deleteKey(ctx context.Context, arg string) {
	key, ok := menu.readKey(arg, promptDelKey)
	if !ok {
		return
	}
	err := menu.cmd.DeleteKey(ctx, key)
	switch errors.Cause(err) {
	case nil:
		fmt.Fprintf(menu.out, "Key <%d> deleted!\n", key)
	case client.ErrNoSuchKey:
		fmt.Fprintf(menu.out, "Unable to delete key: <%d> is not in the DHT\n", key)
	case client.ErrInvalidKey:
		fmt.Fprintf(menu.out, "Unable to delete key: <%d> is an invalid key value\n", key)
	default:
		fmt.Fprintf(menu.out, "Unable to delete key: %v\n", err)
	}
}

func (menu *Menu) toggleDebug(ctx context.Context) {
	on, err := menu.cmd.ToggleDebug(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(menu.out, "Unable to toggle debug: %v\n", err)
	case on:
		io.WriteString(menu.out, "Debug messages enabled.\n")
	default:
		io.WriteString(menu.out, "Debug messages disabled.\n")
	}
}
