// Command bunqlsh is a demonstration shell for bunql, ported in
// spirit from docdb's cmd/docdbsh (command parsing) and
// wbrown-janus-datalog's table_formatter.go (result rendering).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"

	"github.com/axaubet/bunql"
	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/storage"
	"github.com/axaubet/bunql/storage/badgerkv"
	"github.com/axaubet/bunql/storage/pager"
)

func main() {
	dbPath := flag.String("db", "", "path to a BadgerDB directory; empty runs against an in-memory engine")
	flag.Parse()

	var db *bunql.Database
	if *dbPath == "" {
		d, err := bunql.Open(bunql.Options{Engine: pager.New()})
		fatalOn(err)
		db = d
		fmt.Println(color.YellowString("using an in-memory engine; nothing will persist"))
	} else {
		eng, err := badgerkv.Open(*dbPath)
		fatalOn(err)
		d, err := bunql.Open(bunql.Options{Engine: eng})
		fatalOn(err)
		db = d
		fmt.Printf("opened %s\n", *dbPath)
	}
	defer db.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("bunql shell. Type .help for commands, .exit to quit.")

	var current *bunql.Collection
	ctx := context.Background()

	for {
		prompt := "bunql> "
		if current != nil {
			prompt = fmt.Sprintf("bunql[%s]> ", current.Name())
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			fmt.Fprintln(os.Stderr, color.RedString("read error: %v", err))
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if handleMeta(input) {
			return
		}

		start := time.Now()
		if err := runCommand(ctx, db, &current, input); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
			continue
		}
		fmt.Println(color.CyanString("(%s)", time.Since(start)))
	}
}

func handleMeta(input string) (exit bool) {
	switch input {
	case ".exit", ".quit":
		return true
	case ".help":
		printHelp()
	}
	return false
}

func printHelp() {
	fmt.Println(`commands:
  use <collection>                switch the active collection
  insert <json>                   insert a document, e.g. insert {"name":"ann"}
  find <json filter>               run a filter query, e.g. find {"age":{"$gt":21}}
  agg <json array pipeline>        run an aggregation pipeline
  update <id> <json update doc>    apply update operators, e.g. update 1 {"$inc":{"age":1}}
  delete <id>                      delete a document
  index <fieldPath> [unique]       create a secondary index
  .exit                            quit the shell`)
}

func runCommand(ctx context.Context, db *bunql.Database, current **bunql.Collection, input string) error {
	word, rest := splitWord(input)
	switch word {
	case "use":
		c, err := db.Collection(strings.TrimSpace(rest))
		if err != nil {
			return err
		}
		*current = c
		fmt.Printf("switched to %q\n", c.Name())
		return nil
	case "insert":
		return requireCollection(current, func(c *bunql.Collection) error {
			doc, err := bunql.ParseDoc([]byte(rest))
			if err != nil {
				return err
			}
			id, err := c.Insert(ctx, nil, doc)
			if err != nil {
				return err
			}
			fmt.Printf("inserted _id=%s\n", id.String())
			return nil
		})
	case "find":
		return requireCollection(current, func(c *bunql.Collection) error {
			filter, err := bunql.ParseDoc([]byte(rest))
			if err != nil {
				return err
			}
			docs, err := c.Find(ctx, nil, filter)
			if err != nil {
				return err
			}
			printDocs(docs)
			return nil
		})
	case "agg":
		return requireCollection(current, func(c *bunql.Collection) error {
			stages, err := bunql.ParseDocArray([]byte(rest))
			if err != nil {
				return err
			}
			docs, err := c.Aggregate(ctx, nil, stages)
			if err != nil {
				return err
			}
			printDocs(docs)
			return nil
		})
	case "update":
		return requireCollection(current, func(c *bunql.Collection) error {
			idStr, body := splitWord(rest)
			update, err := bunql.ParseDoc([]byte(body))
			if err != nil {
				return err
			}
			return c.Update(ctx, nil, parseIDValue(idStr), update)
		})
	case "delete":
		return requireCollection(current, func(c *bunql.Collection) error {
			return c.Delete(ctx, nil, parseIDValue(strings.TrimSpace(rest)))
		})
	case "index":
		return requireCollection(current, func(c *bunql.Collection) error {
			field, opt := splitWord(rest)
			return c.EnsureIndex(ctx, storage.IndexDescriptor{
				Name:      field,
				FieldPath: field,
				Unique:    strings.TrimSpace(opt) == "unique",
			})
		})
	default:
		return fmt.Errorf("unknown command %q; type .help", word)
	}
}

func requireCollection(current **bunql.Collection, fn func(*bunql.Collection) error) error {
	if *current == nil {
		return fmt.Errorf("no active collection; run 'use <name>' first")
	}
	return fn(*current)
}

func splitWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func printDocs(docs []*core.Doc) {
	if len(docs) == 0 {
		fmt.Println("(no results)")
		return
	}

	cols := docs[0].Keys()
	table := tablewriter.NewTable(os.Stdout)
	table.Header(cols)
	for _, d := range docs {
		row := make([]string, len(cols))
		for i, k := range cols {
			v, ok := d.Get(k)
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = v.String()
		}
		table.Append(row)
	}
	table.Render()
	fmt.Println(humanize.Comma(int64(len(docs))), "row(s)")
}

// parseIDValue accepts either an ObjectID's canonical string form or a
// bare string, since _id may hold either depending on how the
// document was inserted (ParseDoc never produces an ObjectID itself).
func parseIDValue(s string) core.Value {
	if id, err := core.ParseObjectID(s); err == nil {
		return core.ObjectIDValue(id)
	}
	return core.String(s)
}

func fatalOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("fatal: %v", err))
		os.Exit(1)
	}
}
