package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-odb/internal/iocopy"
	"github.com/go-git/go-odb/plumbing"
	"github.com/go-git/go-odb/utils/ioutil"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

type catFileOptions struct {
	showType bool
	showSize bool
	pretty   bool
	verify   bool
}

func newCatFileCommand(fs billy.Filesystem, g *globalOptions) *cobra.Command {
	o := &catFileOptions{}

	cmd := &cobra.Command{
		Use:   "cat-file (-t | -s | -p) <object>",
		Short: "Provide the content, type or size of an object",
		Long: `Resolve an object by its full hash, from the packfiles or the loose
objects of the repository, and print its type, size or content.

Examples:
  # Print the content of a blob
  odb cat-file -p e69de29bb2d1d6434b8b29ae775ad8c2e48c5391

  # Print the type of an object, checking its content against its hash
  odb --git-dir /srv/repo.git cat-file -t --verify <object>`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatFile(cmd, fs, g, o, args[0])
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&o.showType, "type", "t", false, "show the object type")
	flags.BoolVarP(&o.showSize, "size", "s", false, "show the object size")
	flags.BoolVarP(&o.pretty, "pretty", "p", false, "show the object content")
	flags.BoolVar(&o.verify, "verify", false, "check the object content against its hash")

	cmd.MarkFlagsMutuallyExclusive("type", "size", "pretty")
	cmd.MarkFlagsOneRequired("type", "size", "pretty")

	return cmd
}

func runCatFile(cmd *cobra.Command, fs billy.Filesystem, g *globalOptions, o *catFileOptions, name string) (err error) {
	h, ok := plumbing.FromHex(name)
	if !ok {
		return fmt.Errorf("not a valid object name %s", name)
	}

	root, err := g.root()
	if err != nil {
		return err
	}

	e, closeEngine, err := g.newEngine(fs, root)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeEngine()) }()

	ctx := cmd.Context()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	obj, err := e.GetObject(ctx, root, h)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("not a valid object name %s", name)
	}

	if err != nil {
		return err
	}
	defer ioutil.CheckClose(obj, &err)

	out := cmd.OutOrStdout()
	switch {
	case o.showType:
		fmt.Fprintln(out, obj.Type)
	case o.showSize:
		fmt.Fprintln(out, obj.Size)
	case o.pretty:
		_, err = iocopy.CopyObject(out, obj, o.verify)
		return err
	}

	if o.verify {
		_, err = iocopy.CopyObject(io.Discard, obj, true)
	}

	return err
}
