package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var contentType string

var putCmd = &cobra.Command{
	Use:   "put <realm> <path> <file>",
	Short: "Upload a local file's bytes to a realm-scoped path",
	Args:  cobra.ExactArgs(3),
	RunE:  runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <realm> <path>",
	Short: "Print the bytes stored at a realm-scoped path",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var lsCmd = &cobra.Command{
	Use:   "ls <realm> <path>",
	Short: "List the entries of a realm-scoped directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runLs,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <realm> <path>",
	Short: "Create an empty directory at a realm-scoped path",
	Args:  cobra.ExactArgs(2),
	RunE:  runMkdir,
}

var rmCmd = &cobra.Command{
	Use:   "rm <realm> <path>",
	Short: "Remove the entry at a realm-scoped path",
	Args:  cobra.ExactArgs(2),
	RunE:  runRm,
}

var mvCmd = &cobra.Command{
	Use:   "mv <realm> <from> <to>",
	Short: "Move an entry from one realm-scoped path to another",
	Args:  cobra.ExactArgs(3),
	RunE:  runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp <realm> <from> <to>",
	Short: "Copy an entry from one realm-scoped path to another, leaving the source in place",
	Args:  cobra.ExactArgs(3),
	RunE:  runCp,
}

func init() {
	putCmd.Flags().StringVar(&contentType, "content-type", "application/octet-stream", "content type recorded on the uploaded file")
}

func runPut(cmd *cobra.Command, args []string) error {
	realmID, path, file := args[0], args[1], args[2]
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.service.PutFile(adminCaller(realmID), path, data, contentType); err != nil {
		return err
	}
	fmt.Printf("uploaded %d bytes to %s/%s\n", len(data), realmID, path)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	realmID, path := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	f, err := env.service.GetFile(adminCaller(realmID), path)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(f.Data)
	return err
}

func runLs(cmd *cobra.Command, args []string) error {
	realmID, path := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	names, err := env.service.ListDirectory(adminCaller(realmID), path)
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(names, "\n"))
	return nil
}

func runMkdir(cmd *cobra.Command, args []string) error {
	realmID, path := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.service.Mkdir(adminCaller(realmID), path); err != nil {
		return err
	}
	fmt.Printf("created directory %s/%s\n", realmID, path)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	realmID, path := args[0], args[1]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	removed, err := env.service.Remove(adminCaller(realmID), path)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d\n", removed)
	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	realmID, from, to := args[0], args[1], args[2]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.service.Move(adminCaller(realmID), from, to); err != nil {
		return err
	}
	fmt.Printf("moved %s/%s to %s/%s\n", realmID, from, realmID, to)
	return nil
}

func runCp(cmd *cobra.Command, args []string) error {
	realmID, from, to := args[0], args[1], args[2]

	env, err := openEnvironment()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.service.Copy(adminCaller(realmID), from, to); err != nil {
		return err
	}
	fmt.Printf("copied %s/%s to %s/%s\n", realmID, from, realmID, to)
	return nil
}
