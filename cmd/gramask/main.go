/*
Gramask starts an interactive matcher shell session.

It reads in a grammar file and a GVF vocabulary file, compiles them into a
token-mask cache, and opens a matcher over the result. The shell then reads
commands from stdin until the session is over or the "QUIT" command is
input.

Usage:

	gramask [flags]

The flags are:

	-v, --version
		Give the current version of gramask and then exit.

	-g, --grammar FILE
		Use the provided EBNF grammar file. Defaults to the file
		"grammar.ebnf" in the current working directory.

	-b, --vocab FILE
		Use the provided GVF vocabulary file. Defaults to the file
		"vocab.gvf" in the current working directory.

	-d, --direct
	    Force reading directly from the console as opposed to using GNU
		readline based routines for reading command input even if launched
		in a tty with stdin and stdout.

	-c, --command COMMANDS
		Immediately run the given command(s) at start. Can be multiple
		commands separated by the ";" character.

Once a session has started, the user input will be parsed for matcher shell
commands. For an explanation of the commands, type "HELP" once in a session.
To exit the shell, type "QUIT".
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dekarrin/gramask"
	"github.com/dekarrin/gramask/internal/version"
	"github.com/spf13/pflag"
)

const (

	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitSessionError indicates an unsuccessful program execution due to
	// a problem during the session.
	ExitSessionError

	// ExitInitError indicates an unsuccessful program execution due to an
	// issue initializing the engine.
	ExitInitError
)

var (
	returnCode   int     = ExitSuccess
	flagVersion  *bool   = pflag.BoolP("version", "v", false, "Gives the version info")
	grammarFile  *string = pflag.StringP("grammar", "g", "grammar.ebnf", "The EBNF grammar file to compile and match against")
	vocabFile    *string = pflag.StringP("vocab", "b", "vocab.gvf", "The GVF vocabulary file holding decoded token forms")
	forceDirect  *bool   = pflag.BoolP("direct", "d", false, "Force reading directly from stdin instead of going through GNU readline where possible")
	startCommand *string = pflag.StringP("command", "c", "", "Execute the given shell commands immediately at start and leave the shell open")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			// we are panicking, make sure we dont lose the panic just
			// because we checked
			panic(fmt.Sprintf("unrecoverable panic occured: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	var startCommands []string
	if *startCommand != "" {
		startCommands = strings.Split(*startCommand, ";")
	}

	eng, initErr := gramask.New(os.Stdin, os.Stdout, *grammarFile, *vocabFile, *forceDirect)
	if initErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", initErr.Error())
		returnCode = ExitInitError
		return
	}
	defer eng.Close()

	err := eng.RunUntilQuit(startCommands)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitSessionError
		return
	}
}
