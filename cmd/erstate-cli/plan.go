// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ava-labs/erstate/plan"
)

// readPlan loads the plan at [path], reading stdin for "-" and falling back
// to the default lifecycle when [path] is empty.
func readPlan(cmd *cobra.Command, path string) (*plan.Plan, error) {
	var (
		b   []byte
		err error
	)
	switch path {
	case "":
		return plan.Default(), nil
	case "-":
		b, err = io.ReadAll(cmd.InOrStdin())
	default:
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return plan.Unmarshal(b)
}

type planCmdResponse struct {
	Plan     string          `json:"plan"`
	Outcomes []*plan.Outcome `json:"outcomes"`
	Error    string          `json:"error,omitempty"`
}

func (r planCmdResponse) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "plan: %s\n", r.Plan)
	for _, o := range r.Outcomes {
		fmt.Fprintf(&sb, "account %s\n", o.Account)
		for _, resp := range o.Responses {
			fmt.Fprintf(&sb, "  %2d %-18s %-16s", resp.ID, resp.Action, resp.Phase)
			if resp.Account != nil {
				fmt.Fprintf(&sb, " data=%d random=%d round=%d %s",
					resp.Account.Data,
					resp.Account.Random.Value,
					resp.Account.Random.Round,
					resp.Account.Delegation,
				)
			}
			if resp.Error != "" {
				fmt.Fprintf(&sb, " error=%q", resp.Error)
			}
			sb.WriteString("\n")
		}
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "failed: %s", r.Error)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
