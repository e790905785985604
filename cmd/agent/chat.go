package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hr-agent/internal/agent"
	"hr-agent/internal/chat"
	"hr-agent/internal/events"
	"hr-agent/internal/leave"
	"hr-agent/internal/message"
)

func chatCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootOptions{withChat: true})
			if err != nil {
				return err
			}
			defer rt.close()
			return runREPL(cmd.Context(), rt, !quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the intent/plan/action stages")
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send a single message and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootOptions{withChat: true, scheduler: chat.Immediate{}})
			if err != nil {
				return err
			}
			defer rt.close()

			reply, ok := rt.chat.SubmitTurn(cmd.Context(), strings.Join(args, " "))
			if !ok {
				return fmt.Errorf("message was not accepted")
			}
			printResult(reply.Turn.Result)
			printReply(reply)
			return nil
		},
	}
	return cmd
}

func runREPL(ctx context.Context, rt *services, showStages bool) error {
	fmt.Println("hr-agent chat")
	fmt.Println("Commands: /help  /exit  /status  /review  /edit <field> <value>  /submit  /requests")
	fmt.Printf("\n%s\n", chat.WelcomeMessage)

	if showStages {
		id := rt.bus.Subscribe(events.EventStage, func(_ context.Context, evt events.Event) error {
			if st, ok := evt.Payload.(chat.Stage); ok {
				printStageLine(st)
			}
			return nil
		})
		defer rt.bus.Unsubscribe(id)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Printf("\n[%s] > ", rt.chat.Status())
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := runCommand(ctx, rt, line); done {
				return nil
			}
			continue
		}

		start := time.Now()
		reply, ok := rt.chat.SubmitTurn(ctx, line)
		if !ok {
			fmt.Println("busy, try again when the current answer is complete")
			continue
		}
		printReply(reply)
		fmt.Printf("(done in %s)\n", time.Since(start).Round(time.Millisecond))
	}
}

func runCommand(ctx context.Context, rt *services, line string) bool {
	args := strings.Fields(line)
	switch strings.ToLower(args[0]) {
	case "/help":
		printHelp()
	case "/exit", "/quit":
		return true
	case "/status":
		balance, err := rt.leave.Balance(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		fmt.Printf("status=%s today=%s balance=%d/%d weekend=%s\n", rt.chat.Status(), rt.chat.Today(), balance,
			rt.leave.InitialBalance(), strings.Join(rt.leave.Calendar().WeekendNames(), "/"))
		fmt.Println(rt.metrics.Snapshot())
	case "/review":
		printForm(rt, rt.chat.Review())
	case "/edit":
		if len(args) < 3 {
			fmt.Println("usage: /edit <name|type|start|end|reason> <value>")
			return false
		}
		value := strings.Join(args[2:], " ")
		form, err := rt.chat.EditForm(ctx, args[1], value)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		printForm(rt, form)
	case "/submit":
		req, err := rt.chat.SubmitLeave(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		fmt.Printf("submitted %s: %d working day(s), balance %d -> %d, HR notified at %s\n",
			req.ID, req.WorkingDays, req.BalanceBefore, req.BalanceAfter, req.NotifiedTo)
	case "/requests":
		items, err := rt.leave.List(ctx, 20)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return false
		}
		if len(items) == 0 {
			fmt.Println("no leave requests yet")
		}
		for _, r := range items {
			fmt.Printf("- %s %s %s..%s (%d days) %s\n", r.ID, r.Form.LeaveType, r.Form.StartDate, r.Form.EndDate, r.WorkingDays, r.Status)
		}
	default:
		fmt.Println("unknown command, run /help")
	}
	return false
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /help                      Show help")
	fmt.Println("  /exit                      Exit")
	fmt.Println("  /status                    Show status, balance and turn counters")
	fmt.Println("  /review                    Show the leave form")
	fmt.Println("  /edit <field> <value>      Edit a form field (name, type, start, end, reason)")
	fmt.Println("  /submit                    Submit the leave form")
	fmt.Println("  /requests                  List submitted leave requests")
}

func printStageLine(st chat.Stage) {
	switch st.Status {
	case chat.StatusClassifying:
		if st.Intent != "" {
			fmt.Printf("  intent: %s\n", st.Intent)
		} else {
			fmt.Println("  classifying...")
		}
	case chat.StatusPlanning:
		for i, step := range st.Plan {
			fmt.Printf("  plan %d: %s\n", i+1, step)
		}
	case chat.StatusActing:
		fmt.Printf("  action: %s\n", st.Action)
	case chat.StatusNotifying:
		fmt.Println("  notifying...")
	}
}

func printResult(res *agent.Result) {
	if res == nil {
		return
	}
	fmt.Printf("intent: %s\n", res.Intent)
	for i, step := range res.Plan {
		fmt.Printf("plan %d: %s\n", i+1, step)
	}
	fmt.Printf("action: %s\n", res.Action)
}

func printReply(reply chat.Reply) {
	fmt.Printf("\n%s\n", reply.Turn.Content)
	if reply.Turn.Action == message.ActionReviewForm {
		form := reply.Form
		fmt.Printf("[review form] %s %s..%s, run /review or /submit\n", form.LeaveType, form.StartDate, form.EndDate)
	}
}

func printForm(rt *services, f leave.Form) {
	fmt.Printf("name:   %s\n", f.Name)
	fmt.Printf("type:   %s\n", f.LeaveType)
	fmt.Printf("start:  %s\n", f.StartDate)
	fmt.Printf("end:    %s\n", f.EndDate)
	fmt.Printf("reason: %s\n", clip(f.Reason, 120))
	fmt.Printf("working days: %d\n", rt.leave.Calendar().WorkingDays(f.StartDate, f.EndDate))
}
