package main

import (
	"github.com/spf13/pflag"

	"github.com/yarkm13/red-connector-http/internal/access"
	"github.com/yarkm13/red-connector-http/internal/cli"
	"github.com/yarkm13/red-connector-http/internal/connerr"
	"github.com/yarkm13/red-connector-http/internal/httpfs"
	"github.com/yarkm13/red-connector-http/internal/listing"
	"github.com/yarkm13/red-connector-http/internal/mount"
	"github.com/yarkm13/red-connector-http/internal/transport"
)

func (a *app) root() *cli.Command {
	var asJSON bool
	var listingPath string

	jsonFlags := func(name string) func() *pflag.FlagSet {
		return func() *pflag.FlagSet {
			flagSet := a.flagSet(name)
			flagSet.BoolVar(&asJSON, "json", false, "treat the file as a JSON document")
			return flagSet
		}
	}
	listingFlags := func(name string) func() *pflag.FlagSet {
		return func() *pflag.FlagSet {
			flagSet := a.flagSet(name)
			flagSet.StringVar(&listingPath, "listing", "", "JSON listing of the directory tree")
			return flagSet
		}
	}
	globalFlags := func(name string) func() *pflag.FlagSet {
		return func() *pflag.FlagSet { return a.flagSet(name) }
	}

	return &cli.Command{
		Name:    "red-connector-http",
		Summary: "Transfer files and listed directories over HTTP, FTP, SFTP and SCP",
		Subcommands: []*cli.Command{
			{
				Name:    "cli-version",
				Summary: "Print the connector CLI version",
				Run:     func([]string) error { return a.printVersion() },
			},
			{
				Name:    "receive-file",
				Summary: "Fetch a remote file",
				Usage:   "red-connector-http receive-file ACCESSFILE LOCALFILE [--json]",
				Args:    2,
				Flags:   jsonFlags("receive-file"),
				Run: func(args []string) error {
					return a.receiveFile(args[0], args[1], asJSON)
				},
			},
			{
				Name:    "receive-file-validate",
				Summary: "Validate an access descriptor for receive-file",
				Usage:   "red-connector-http receive-file-validate ACCESSFILE",
				Args:    1,
				Flags:   globalFlags("receive-file-validate"),
				Run: func(args []string) error {
					_, err := loadDescriptor(args[0])
					return err
				},
			},
			{
				Name:    "send-file",
				Summary: "Send a local file to a remote URL",
				Usage:   "red-connector-http send-file ACCESSFILE LOCALFILE [--json]",
				Args:    2,
				Flags:   jsonFlags("send-file"),
				Run: func(args []string) error {
					return a.sendFile(args[0], args[1], asJSON)
				},
			},
			{
				Name:    "send-file-validate",
				Summary: "Validate an access descriptor for send-file",
				Usage:   "red-connector-http send-file-validate ACCESSFILE",
				Args:    1,
				Flags:   globalFlags("send-file-validate"),
				Run: func(args []string) error {
					_, err := loadDescriptor(args[0])
					return err
				},
			},
			{
				Name:    "receive-dir",
				Summary: "Fetch a remote directory described by a listing",
				Usage:   "red-connector-http receive-dir ACCESSFILE LOCALDIR --listing LISTINGFILE",
				Args:    2,
				Flags:   listingFlags("receive-dir"),
				Run: func(args []string) error {
					return a.receiveDir(args[0], args[1], listingPath)
				},
			},
			{
				Name:    "receive-dir-validate",
				Summary: "Validate an access descriptor and listing for receive-dir",
				Usage:   "red-connector-http receive-dir-validate ACCESSFILE --listing LISTINGFILE",
				Args:    1,
				Flags:   listingFlags("receive-dir-validate"),
				Run: func(args []string) error {
					if _, err := loadDescriptor(args[0]); err != nil {
						return err
					}
					_, err := loadListing(listingPath)
					return err
				},
			},
			{
				Name:    "mount-dir",
				Summary: "Mount a remote HTTP directory with httpdirfs",
				Usage:   "red-connector-http mount-dir ACCESSFILE LOCALDIR",
				Args:    2,
				Flags:   globalFlags("mount-dir"),
				Run: func(args []string) error {
					return a.mountDir(args[0], args[1])
				},
			},
			{
				Name:    "mount-dir-validate",
				Summary: "Validate an access descriptor and the mount executables",
				Usage:   "red-connector-http mount-dir-validate ACCESSFILE",
				Args:    1,
				Flags:   globalFlags("mount-dir-validate"),
				Run: func(args []string) error {
					return a.validateMount(args[0])
				},
			},
			{
				Name:    "umount-dir",
				Summary: "Unmount a directory mounted with mount-dir",
				Usage:   "red-connector-http umount-dir LOCALDIR",
				Args:    1,
				Flags:   globalFlags("umount-dir"),
				Run: func(args []string) error {
					return a.umountDir(args[0])
				},
			},
			{
				Name:        "serve-listing",
				Summary:     "Serve a listed remote directory as a read-only FUSE mount",
				Description: "Mounts the listing at LOCALDIR in the foreground. File contents are read\nwith HTTP Range requests on demand. Runs until interrupted.",
				Usage:       "red-connector-http serve-listing ACCESSFILE LOCALDIR --listing LISTINGFILE",
				Args:        2,
				Flags:       listingFlags("serve-listing"),
				Run: func(args []string) error {
					return a.serveListing(args[0], args[1], listingPath)
				},
			},
		},
	}
}

// loadDescriptor reads and validates a transfer descriptor, including the
// method and auth names that would otherwise only fail once the command
// runs.
func loadDescriptor(path string) (*access.Descriptor, error) {
	descriptor, err := access.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	if err := checkTransportOptions(descriptor); err != nil {
		return nil, err
	}
	return descriptor, nil
}

// loadMountDescriptor reads and validates a descriptor for mounting.
func loadMountDescriptor(path string) (*access.Descriptor, error) {
	descriptor, err := access.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := descriptor.ValidateMount(); err != nil {
		return nil, err
	}
	if err := checkTransportOptions(descriptor); err != nil {
		return nil, err
	}
	return descriptor, nil
}

func checkTransportOptions(descriptor *access.Descriptor) error {
	options, err := descriptor.TransportOptions(transport.MethodGet)
	if err != nil {
		return err
	}
	options.Credentials.Clear()
	return nil
}

func loadListing(path string) ([]*listing.Node, error) {
	if path == "" {
		return nil, connerr.Listing("directory operations require a listing (--listing)")
	}
	return listing.ReadFile(path)
}

func (a *app) receiveFile(accessPath, localFile string, asJSON bool) error {
	descriptor, err := a.openDescriptor(accessPath, loadDescriptor)
	if err != nil {
		return err
	}
	if asJSON {
		return a.engine.ReceiveDocument(a.ctx, localFile, descriptor)
	}
	return a.engine.ReceiveFile(a.ctx, localFile, descriptor)
}

func (a *app) sendFile(accessPath, localFile string, asJSON bool) error {
	descriptor, err := a.openDescriptor(accessPath, loadDescriptor)
	if err != nil {
		return err
	}
	if asJSON {
		return a.engine.SendDocument(a.ctx, localFile, descriptor)
	}
	return a.engine.SendFile(a.ctx, localFile, descriptor)
}

func (a *app) receiveDir(accessPath, localDir, listingPath string) error {
	nodes, err := loadListing(listingPath)
	if err != nil {
		return err
	}
	descriptor, err := a.openDescriptor(accessPath, loadDescriptor)
	if err != nil {
		return err
	}
	return a.engine.ReceiveDir(a.ctx, localDir, descriptor, nodes)
}

func (a *app) executables() (mount.Executables, error) {
	return mount.FindExecutables(a.config.Mount.HTTPDirFS, a.config.Mount.FuserMount)
}

func (a *app) validateMount(accessPath string) error {
	if err := a.setup(); err != nil {
		return err
	}
	if _, err := loadMountDescriptor(accessPath); err != nil {
		return err
	}
	_, err := a.executables()
	return err
}

func (a *app) mountDir(accessPath, localDir string) error {
	descriptor, err := a.openDescriptor(accessPath, loadMountDescriptor)
	if err != nil {
		return err
	}
	executables, err := a.executables()
	if err != nil {
		return err
	}
	return mount.NewDriver(executables, a.logger).Mount(a.ctx, descriptor, localDir)
}

func (a *app) umountDir(localDir string) error {
	if err := a.setup(); err != nil {
		return err
	}
	fusermount, err := mount.FindFuserMount(a.config.Mount.FuserMount)
	if err != nil {
		return err
	}
	driver := mount.NewDriver(mount.Executables{FuserMount: fusermount}, a.logger)
	return driver.Unmount(a.ctx, localDir)
}

func (a *app) serveListing(accessPath, localDir, listingPath string) error {
	nodes, err := loadListing(listingPath)
	if err != nil {
		return err
	}
	descriptor, err := a.openDescriptor(accessPath, loadMountDescriptor)
	if err != nil {
		return err
	}
	client, err := a.engine.HTTPClient(descriptor)
	if err != nil {
		return err
	}
	defer client.Close()

	server, err := httpfs.Mount(httpfs.Options{
		Mountpoint: localDir,
		BaseURL:    descriptor.URL,
		Listing:    nodes,
		Client:     client,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-a.ctx.Done():
		a.logger.Info("unmounting", "path", localDir)
		if err := server.Unmount(); err != nil {
			return connerr.Mount("unmounting %s: %w", localDir, err)
		}
		<-done
	case <-done:
		a.logger.Info("filesystem unmounted externally", "path", localDir)
	}
	return nil
}
