package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/focus/internal/core"
	"github.com/valter-silva-au/focus/pkg/models"
)

var diagnoseAnswers string

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Take the productivity type diagnosis",
	Long: `Answer seven questions with A, B or C to find your productivity type
(planner, sprinter or flow). Pass --answers ABCABCA to answer in one go;
otherwise the questions are asked on stdin.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ProfileSvc == nil {
			return fmt.Errorf("profile service not initialized")
		}
		d := core.NewDiagnosis(ProfileSvc, Events)
		if diagnoseAnswers != "" {
			if err := d.ParseAnswers(diagnoseAnswers); err != nil {
				return err
			}
		} else if err := askQuestions(cmd.InOrStdin(), cmd.OutOrStdout(), d); err != nil {
			return err
		}

		res, err := d.Submit(cmdContext(cmd))
		if err != nil {
			return err
		}
		printDiagnosis(cmd.OutOrStdout(), res.MainType, res.SubType)
		return nil
	},
}

// askQuestions reads one answer per question, repeating a question until the
// answer is valid.
func askQuestions(in io.Reader, out io.Writer, d *core.Diagnosis) error {
	scanner := bufio.NewScanner(in)
	for {
		q, pending := d.Current()
		if !pending {
			return nil
		}
		answered, total := d.Progress()
		fmt.Fprintf(out, "\n(%d/%d) %s\n", answered+1, total, q.Text)
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %s) %s\n", core.Choices[i], opt)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			return fmt.Errorf("diagnosis aborted at question %d", q.Index)
		}
		if err := d.Answer(q.Index, scanner.Text()); err != nil {
			fmt.Fprintln(out, "Please answer A, B or C.")
		}
	}
}

func printDiagnosis(out io.Writer, main models.SortType, sub string) {
	advice, ok := core.AdviceFor(main)
	if !ok {
		fmt.Fprintln(out, "No diagnosis yet. Run \"focus diagnose\".")
		return
	}
	fmt.Fprintf(out, "You are a %s.\n", advice.Title)
	if sub != "" {
		fmt.Fprintf(out, "Tied types: %s\n", strings.ReplaceAll(sub, "/", ", "))
	}
	fmt.Fprintln(out, advice.Message)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your productivity type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ProfileSvc == nil {
			return fmt.Errorf("profile service not initialized")
		}
		p, err := ProfileSvc.GetProfile(cmdContext(cmd))
		if err != nil {
			return err
		}
		printDiagnosis(cmd.OutOrStdout(), p.MainType, p.SubType)
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&diagnoseAnswers, "answers", "", "All seven answers, e.g. ABCABCA")
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(profileCmd)
}
