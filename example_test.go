package sharkfs_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/sharkfs"
)

// Example demonstrates formatting an image and round-tripping file
// content through it.
func Example() {
	dir, err := os.MkdirTemp("", "sharkfs")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	fs, err := sharkfs.Format(filepath.Join(dir, "disk.img"), 64*int64(os.Getpagesize()))
	if err != nil {
		log.Fatal(err)
	}
	defer fs.Unmount()

	fd, err := fs.Open("greeting.txt")
	if err != nil {
		log.Fatal(err)
	}
	defer fs.Close(fd)

	msg := []byte("hello, sharkfs")
	if _, err := fs.Write(fd, msg); err != nil {
		log.Fatal(err)
	}
	if _, err := fs.Seek(fd, -int64(len(msg))); err != nil {
		log.Fatal(err)
	}

	buf := make([]byte, len(msg))
	n, err := fs.Read(fd, buf)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(buf[:n]))
	// Output: hello, sharkfs
}

// Example_listing demonstrates iterating over the root directory.
func Example_listing() {
	dir, err := os.MkdirTemp("", "sharkfs")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	fs, err := sharkfs.Format(filepath.Join(dir, "disk.img"), 64*int64(os.Getpagesize()))
	if err != nil {
		log.Fatal(err)
	}
	defer fs.Unmount()

	for _, name := range []string{"beta", "alpha", "gamma"} {
		fd, err := fs.Open(name)
		if err != nil {
			log.Fatal(err)
		}
		fs.Close(fd)
	}

	names, err := fs.ListAll()
	if err != nil {
		log.Fatal(err)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	// Output:
	// alpha
	// beta
	// gamma
}
