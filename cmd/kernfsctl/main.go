package main

import (
	"fmt"
	"os"

	"github.com/go-pintos/kernfs"
)

const usage = `kernfsctl - kernfs disk image tool

Usage:
  kernfsctl mkfs <image> <sectors>          Format a new filesystem image
  kernfsctl ls <image> [<path>]             List a directory's entries
  kernfsctl cat <image> <file>              Print a file's contents
  kernfsctl mkdir <image> <path>            Create a directory
  kernfsctl import <image> <host-dir>       Import a host directory tree
  kernfsctl info <image>                    Show free-space information
  kernfsctl help                            Show this help message
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "mkfs":
		err = cmdMkfs(os.Args[2:])
	case "ls":
		err = cmdLs(os.Args[2:])
	case "cat":
		err = cmdCat(os.Args[2:])
	case "mkdir":
		err = cmdMkdir(os.Args[2:])
	case "import":
		err = cmdImport(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("Error: unknown command %q\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func cmdMkfs(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kernfsctl mkfs <image> <sectors>")
	}
	var sectors int
	if _, err := fmt.Sscanf(args[1], "%d", &sectors); err != nil {
		return fmt.Errorf("invalid sector count %q: %w", args[1], err)
	}
	dev, err := kernfs.OpenFileDevice(args[0], kernfs.Sector(sectors), true)
	if err != nil {
		return err
	}
	fsys, err := kernfs.Format(dev)
	if err != nil {
		dev.Close()
		return err
	}
	return fsys.Close()
}

func openImage(path string) (*kernfs.FileSystem, error) {
	dev, err := kernfs.OpenFileDevice(path, 0, false)
	if err != nil {
		return nil, err
	}
	return kernfs.Open(dev)
}

func cmdLs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kernfsctl ls <image> [<path>]")
	}
	fsys, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	path := "."
	if len(args) > 1 {
		path = args[1]
	}
	ino, err := fsys.OpenPath(fsys.RootSector(), path)
	if err != nil {
		return err
	}
	defer ino.Close()
	if !ino.IsDir() {
		return fmt.Errorf("%q is not a directory", path)
	}

	for _, e := range kernfs.OpenDirectory(ino).Readdir() {
		fmt.Println(e.Name)
	}
	return nil
}

func cmdCat(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kernfsctl cat <image> <file>")
	}
	fsys, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	ino, err := fsys.OpenPath(fsys.RootSector(), args[1])
	if err != nil {
		return err
	}
	defer ino.Close()
	if ino.IsDir() {
		return fmt.Errorf("%q is a directory", args[1])
	}

	buf := make([]byte, ino.Size())
	if _, err := ino.ReadAt(buf, 0); err != nil {
		return err
	}
	_, err = os.Stdout.Write(buf)
	return err
}

func cmdMkdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kernfsctl mkdir <image> <path>")
	}
	fsys, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	ino, err := fsys.CreateDirectory(fsys.RootSector(), args[1])
	if err != nil {
		return err
	}
	return ino.Close()
}

func cmdImport(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: kernfsctl import <image> <host-dir>")
	}
	fsys, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	b := kernfs.NewBuilder(fsys)
	return b.Import(os.DirFS(args[1]), fsys.RootSector())
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: kernfsctl info <image>")
	}
	fsys, err := openImage(args[0])
	if err != nil {
		return err
	}
	defer fsys.Close()

	fmt.Println("kernfs image information")
	fmt.Println("========================")
	fmt.Printf("Free sectors: %d\n", fsys.FreeSectors())
	return nil
}
