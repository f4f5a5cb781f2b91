package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"noetic/internal/cognition"
	"noetic/internal/config"
	"noetic/internal/rules"
)

var cmdIn io.Reader = os.Stdin

// RetractType and its modes alias the cognition package's retraction modes
// so the command layer can name them directly.
type RetractType = cognition.RetractType

const (
	ByID       = cognition.ByID
	ByNote     = cognition.ByNote
	ByRuleForm = cognition.ByRuleForm
	ByKIF      = cognition.ByKIF
)

// runREPL drives an interactive session over the same command surface the
// cobra subcommands expose (spec section 6). Each line is either a bare KIF
// term (treated as `add`) or a `:`-prefixed meta command.
func runREPL(c *cognition.Cognition) error {
	fmt.Println("cogctl interactive mode. Type :help for commands, :quit to exit.")
	scanner := bufio.NewScanner(cmdIn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Print("cog> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			fmt.Println()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if quit := dispatchMeta(c, line); quit {
				return nil
			}
			continue
		}
		results, err := c.Add(line, partition, "")
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		for _, r := range results {
			printAddResult(r)
		}
	}
}

func dispatchMeta(c *cognition.Cognition, line string) (quit bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case ":quit", ":exit":
		return true

	case ":help":
		printREPLHelp()

	case ":query":
		if len(rest) == 0 {
			fmt.Println("usage: :query <kif-pattern>")
			return false
		}
		mode, err := parseQueryMode(queryMode)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		answer, err := c.Ask(context.Background(), strings.Join(rest, " "), partition, mode)
		if err != nil {
			fmt.Println("error:", err)
			return false
		}
		printAnswer(answer, mode)

	case ":retract":
		if len(rest) == 0 {
			fmt.Println("usage: :retract <id>")
			return false
		}
		if err := c.Retract(partition, rest[0], ByID, ""); err != nil {
			fmt.Println("error:", err)
			return false
		}
		fmt.Println("retracted")

	case ":pause":
		c.Pause()
		fmt.Println("paused")

	case ":resume":
		c.Unpause()
		fmt.Println("resumed")

	case ":clear":
		c.Clear(partition)
		fmt.Printf("cleared partition %q\n", partition)

	case ":status":
		printStatus(c.GetStatus())

	case ":config":
		if err := printConfig(c.GetConfig()); err != nil {
			fmt.Println("error:", err)
		}

	case ":partition":
		if len(rest) == 0 {
			fmt.Println("current partition:", partition)
			return false
		}
		partition = rest[0]
		fmt.Println("partition set to", partition)

	default:
		fmt.Printf("unknown command %q; try :help\n", cmd)
	}
	return false
}

func printREPLHelp() {
	fmt.Println(`commands:
  <kif-term>           add a rule, equivalence, or assertion to the current partition
  :query <pattern>     ask a query (mode set by --mode)
  :retract <id>        retract an assertion by id
  :pause / :resume     suspend/resume ingestion and forward chaining
  :clear               wipe the current partition
  :status              print engine status
  :config              print the running configuration
  :partition [id]      show or switch the current partition
  :quit                leave the REPL`)
}

func printAddResult(r cognition.AddResult) {
	switch {
	case r.Dropped:
		fmt.Printf("dropped (%s)\n", r.Reason)
	case r.Kind == cognition.KindAssertion:
		fmt.Printf("asserted %s: %s\n", r.Assertion.ID, r.Assertion.Term.String())
	default:
		fmt.Printf("rule(s) registered: %s\n", strings.Join(r.RuleIDs, ", "))
	}
}

func printAnswer(a rules.Answer, mode rules.Mode) {
	if a.TimedOut {
		fmt.Println("timeout")
		return
	}
	switch mode {
	case rules.AskBindings:
		if len(a.Bindings) == 0 {
			fmt.Println("no bindings")
			return
		}
		for i, b := range a.Bindings {
			parts := make([]string, 0, len(b))
			for v, t := range b {
				parts = append(parts, fmt.Sprintf("?%s=%s", v, t.String()))
			}
			fmt.Printf("[%d] %s\n", i, strings.Join(parts, " "))
		}
	default:
		fmt.Println(a.True)
	}
}

func printStatus(s cognition.Status) {
	fmt.Printf("paused: %v\n", s.Paused)
	fmt.Printf("rules: %d\n", s.RuleCount)
	fmt.Printf("bus: subscribers=%d emitted=%d dropped=%d queue=%d/%d\n",
		s.Bus.SubscriberCount, s.Bus.TotalEmitted, s.Bus.Dropped, s.Bus.QueueLen, s.Bus.QueueDepth)
	for _, p := range s.Partitions {
		fmt.Printf("  %-16s assertions=%d active=%d\n", p.ID, p.AssertionCount, p.ActiveCount)
	}
}

func printConfig(cfg config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

func parseRetractKind(s string) (RetractType, error) {
	switch s {
	case "id":
		return ByID, nil
	case "note":
		return ByNote, nil
	case "rule-form":
		return ByRuleForm, nil
	case "kif":
		return ByKIF, nil
	}
	return 0, fmt.Errorf("cogctl: unknown --by mode %q", s)
}

func parseQueryMode(s string) (rules.Mode, error) {
	switch s {
	case "bindings":
		return rules.AskBindings, nil
	case "true-false":
		return rules.AskTrueFalse, nil
	case "achieve":
		return rules.AchieveGoal, nil
	}
	return 0, fmt.Errorf("cogctl: unknown --mode %q", s)
}
