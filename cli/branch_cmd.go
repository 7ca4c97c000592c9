package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcfs/realm/internal/delegate"
	"github.com/arcfs/realm/internal/realm"
	"github.com/arcfs/realm/internal/realmauth"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage branch delegates",
}

var branchTTL string

var branchCreateCmd = &cobra.Command{
	Use:   "create <realm> <mountPath>",
	Short: "Create a branch rooted at a path within the realm",
	Args:  cobra.ExactArgs(2),
	RunE:  runBranchCreate,
}

var branchListCmd = &cobra.Command{
	Use:   "list <realm>",
	Short: "List every delegate (root and branches) in a realm",
	Args:  cobra.ExactArgs(1),
	RunE:  runBranchList,
}

var branchRevokeCmd = &cobra.Command{
	Use:   "revoke <realm> <branchID>",
	Short: "Hard-remove a branch delegate",
	Args:  cobra.ExactArgs(2),
	RunE:  runBranchRevoke,
}

var branchCompleteToken string

var branchCompleteCmd = &cobra.Command{
	Use:   "complete <realm> <branchID>",
	Short: "Splice a branch's root into its parent and mark it closed",
	Args:  cobra.ExactArgs(2),
	RunE:  runBranchComplete,
}

func init() {
	branchCreateCmd.Flags().StringVar(&branchTTL, "ttl", "", "branch lifetime, e.g. 60s; omit for an unlimited-lifetime branch")
	branchCompleteCmd.Flags().StringVar(&branchCompleteToken, "token", "", "the branch's own bearer token (required: completion must be authenticated as the branch's worker)")
}

func runBranchCreate(cmd *cobra.Command, args []string) error {
	realmID, mountPath := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	opts := realm.CreateBranchOptions{MountPath: mountPath}
	if branchTTL != "" {
		ttl, err := time.ParseDuration(branchTTL)
		if err != nil {
			return fmt.Errorf("parse --ttl: %w", err)
		}
		opts.TTL = &ttl
	}

	d, token, err := env.service.CreateBranch(adminCaller(realmID), opts)
	if err != nil {
		return err
	}
	fmt.Printf("branchId=%s\naccessToken=%s\n", d.ID, token)
	if d.Lifetime == delegate.LifetimeLimited {
		fmt.Printf("expiry=%s\n", d.Expiry.Format(time.RFC3339))
	}
	return nil
}

func runBranchList(cmd *cobra.Command, args []string) error {
	realmID := args[0]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	list, err := env.service.ListBranches(adminCaller(realmID))
	if err != nil {
		return err
	}
	for _, d := range list {
		fmt.Printf("%s\tmount=%q\tparent=%q\tclosed=%t\n", d.ID, d.MountPath, d.ParentID, d.Closed)
	}
	return nil
}

func runBranchRevoke(cmd *cobra.Command, args []string) error {
	realmID, branchID := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.service.RevokeBranch(adminCaller(realmID), branchID); err != nil {
		return err
	}
	fmt.Printf("revoked %s\n", branchID)
	return nil
}

func runBranchComplete(cmd *cobra.Command, args []string) error {
	_, branchID := args[0], args[1]
	if branchCompleteToken == "" {
		return fmt.Errorf("--token is required: completion must be authenticated as the branch's own worker")
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	worker, err := realmauth.Authenticate(branchCompleteToken, time.Now(), env.service.Delegates)
	if err != nil {
		return err
	}

	if err := env.service.CompleteBranch(worker, branchID); err != nil {
		return err
	}
	fmt.Printf("completed %s\n", branchID)
	return nil
}
