package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/smart-ledger/internal/app"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/spf13/cobra"
)

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit FILE",
		Short: "Submit a statement (.xlsx, .csv or .pdf) for import",
		Long: `Submit a statement for import.

With --process the ingestion pipeline runs inside this command and it
waits until the job reaches REVIEW or FAILED. Use it with the in-memory
queue, where no separate worker would see the event.`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}
	cmd.Flags().Bool("process", false, "Run the pipeline in-process and wait for the result")
	cmd.Flags().Duration("timeout", 10*time.Minute, "How long --process waits")
	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	process, _ := cmd.Flags().GetBool("process")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if process {
		if err := a.StartWorkers(ctx); err != nil {
			return err
		}
		defer a.Queue.Stop(context.Background())
	}

	job, err := a.Imports.Submit(ctx, userID, filepath.Base(args[0]), data)
	if err != nil {
		return err
	}
	if process && job.Status == domain.JobStatusPending {
		job, err = waitForJob(ctx, a, job.ID, timeout)
		if err != nil {
			return err
		}
	}
	return printJSON(job)
}

// waitForJob polls until the job leaves PENDING and PROCESSING.
func waitForJob(ctx context.Context, a *app.App, jobID string, timeout time.Duration) (*domain.ImportJob, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		job, err := a.Imports.GetJob(ctx, jobID, userID)
		if err != nil {
			return nil, err
		}
		if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusProcessing {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("job %s still %s: %w", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Show an import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.Imports.GetJob(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return printJSON(job)
		},
	}
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent import jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.Imports.ListJobs(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			for _, j := range jobs {
				fmt.Printf("%s  %-10s  %3d drafts  %s  %s\n", j.ID, j.Status, j.DraftCount, j.CreatedAt.Format(time.RFC3339), j.Filename)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum jobs to list")
	return cmd
}

func draftsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drafts JOB_ID",
		Short: "Show the drafts awaiting review for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			listing, err := a.Imports.ListDrafts(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return printJSON(listing)
		},
	}
}

func confirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm JOB_ID",
		Short: "Promote a job's drafts into the ledger",
		Long: `Promote every draft of a job in REVIEW into the ledger.

Overrides change a draft before promotion:
  cli confirm JOB_ID --category d1=餐饮 --description d2="Rent March"`,
		Args: cobra.ExactArgs(1),
		RunE: runConfirm,
	}
	cmd.Flags().StringArray("category", nil, "Override a draft category as DRAFT_ID=VALUE")
	cmd.Flags().StringArray("description", nil, "Override a draft description as DRAFT_ID=VALUE")
	cmd.Flags().StringArray("merchant", nil, "Override a draft merchant as DRAFT_ID=VALUE")
	return cmd
}

func runConfirm(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	categories, _ := cmd.Flags().GetStringArray("category")
	descriptions, _ := cmd.Flags().GetStringArray("description")
	merchants, _ := cmd.Flags().GetStringArray("merchant")
	overrides, err := parseOverrides(categories, descriptions, merchants)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Imports.Confirm(cmd.Context(), args[0], userID, overrides)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// parseOverrides merges DRAFT_ID=VALUE flags into one override per draft,
// in first-seen order.
func parseOverrides(categories, descriptions, merchants []string) ([]domain.Override, error) {
	byID := map[string]*domain.Override{}
	var order []string
	apply := func(flag string, values []string, set func(o *domain.Override, v string)) error {
		for _, kv := range values {
			id, v, ok := strings.Cut(kv, "=")
			if !ok || id == "" {
				return fmt.Errorf("--%s %q: expected DRAFT_ID=VALUE", flag, kv)
			}
			o, seen := byID[id]
			if !seen {
				o = &domain.Override{ID: id}
				byID[id] = o
				order = append(order, id)
			}
			set(o, v)
		}
		return nil
	}
	if err := apply("category", categories, func(o *domain.Override, v string) { o.Category = &v }); err != nil {
		return nil, err
	}
	if err := apply("description", descriptions, func(o *domain.Override, v string) { o.Description = &v }); err != nil {
		return nil, err
	}
	if err := apply("merchant", merchants, func(o *domain.Override, v string) { o.Merchant = &v }); err != nil {
		return nil, err
	}

	overrides := make([]domain.Override, 0, len(order))
	for _, id := range order {
		overrides = append(overrides, *byID[id])
	}
	return overrides, nil
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry JOB_ID",
		Short: "Re-run a FAILED job from its stored original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Imports.Retry(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}
