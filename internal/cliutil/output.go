// Package cliutil provides colored status output and simple table
// rendering shared by vigilctl's subcommands.
package cliutil

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
)

func Success(format string, a ...interface{}) {
	successColor.Printf("✓ "+format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	errorColor.Fprintf(os.Stderr, "✗ "+format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	infoColor.Printf(format+"\n", a...)
}

func Warn(format string, a ...interface{}) {
	warnColor.Printf("⚠ "+format+"\n", a...)
}

func JSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers []string) *Table {
	return &Table{headers: headers}
}

func (t *Table) AddRow(row []string) {
	t.rows = append(t.rows, row)
}

func (t *Table) Render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	headerColor := color.New(color.FgWhite, color.Bold)
	for i, h := range t.headers {
		headerColor.Printf("%-*s  ", widths[i], h)
	}
	fmt.Println()

	for i := range t.headers {
		fmt.Print(strings.Repeat("-", widths[i]) + "  ")
	}
	fmt.Println()

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Printf("%-*s  ", widths[i], cell)
		}
		fmt.Println()
	}
}
