// Package main is a command line tool for a TB6612FNG driver wired to Linux GPIO lines.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
