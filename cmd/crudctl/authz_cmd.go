package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/tenantcrud/pkg/authz"
	"github.com/iota-uz/tenantcrud/pkg/configuration"
)

type fixtureCase struct {
	Subject string `yaml:"subject"`
	Domain  string `yaml:"domain"`
	Object  string `yaml:"object"`
	Action  string `yaml:"action"`
	Allow   bool   `yaml:"allow"`
	Note    string `yaml:"note,omitempty"`
}

type mismatch struct {
	Subject  string `json:"subject"`
	Domain   string `json:"domain"`
	Object   string `json:"object"`
	Action   string `json:"action"`
	Expected bool   `json:"expected"`
	Actual   bool   `json:"actual"`
	Note     string `json:"note,omitempty"`
}

type verifyOutput struct {
	Command    string     `json:"command"`
	Cases      int        `json:"cases"`
	Mismatches []mismatch `json:"mismatches"`
}

func loadFixtures(path string) ([]fixtureCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var cases []fixtureCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return cases, nil
}

// verifyFixtures evaluates every case regardless of the enforcement mode.
func verifyFixtures(ctx context.Context, svc *authz.Service, cases []fixtureCase) ([]mismatch, error) {
	var out []mismatch
	for _, c := range cases {
		req := authz.NewRequest(
			authz.SubjectForCaller(c.Subject),
			authz.DomainForOrganization(c.Domain),
			c.Object,
			c.Action,
		)
		allowed, err := svc.Check(ctx, req)
		if err != nil {
			return nil, err
		}
		if allowed != c.Allow {
			out = append(out, mismatch{
				Subject:  req.Subject,
				Domain:   req.Domain,
				Object:   req.Object,
				Action:   req.Action,
				Expected: c.Allow,
				Actual:   allowed,
				Note:     c.Note,
			})
		}
	}
	return out, nil
}

func newAuthzVerifyCmd() *cobra.Command {
	var fixturesPath string

	cmd := &cobra.Command{
		Use:   "authz-verify",
		Short: "Check the access policy against expected decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cases, err := loadFixtures(fixturesPath)
			if err != nil {
				return err
			}
			svc, err := authz.NewService(authz.ConfigFrom(configuration.Use()))
			if err != nil {
				return err
			}
			mismatches, err := verifyFixtures(cmd.Context(), svc, cases)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), verifyOutput{
				Command:    "authz-verify",
				Cases:      len(cases),
				Mismatches: mismatches,
			}); err != nil {
				return err
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d of %d cases do not match the policy", len(mismatches), len(cases))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fixturesPath, "fixtures", "", "YAML fixture file (required)")
	_ = cmd.MarkFlagRequired("fixtures")
	return cmd
}
