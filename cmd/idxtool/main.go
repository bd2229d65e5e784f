// Command idxtool inspects and builds L2P/P2L index files: a small
// operator-facing CLI around the internal index packages, in the spirit of
// the teacher's single-binary tinysql CLI (subcommands dispatched off
// os.Args, one flag.FlagSet per subcommand).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/l2p"
	"github.com/svnidx/revindex/internal/p2l"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "header":
		err = runHeader(os.Args[2:])
	case "page":
		err = runPage(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "build-l2p":
		err = runBuildL2P(os.Args[2:])
	case "build-p2l":
		err = runBuildP2L(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "idxtool: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: idxtool <command> [flags]

Commands:
  header     -file PATH [-kind l2p|p2l]   print a parsed index header
  page       -file PATH -index N          print one page (l2p: its page-table entry; p2l: its decoded entries)
  verify     -file PATH [-kind l2p|p2l]   scan every page, report corruption
  build-l2p  -proto PATH -out PATH -rev R -page-size N
  build-p2l  -proto PATH -out PATH -rev R -target-rev R -page-size N`)
}

func kindFlag(fs *flag.FlagSet) *string {
	return fs.String("kind", "l2p", "index kind: l2p or p2l")
}

func runHeader(args []string) error {
	fs := flag.NewFlagSet("header", flag.ExitOnError)
	file := fs.String("file", "", "index file path")
	kind := kindFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	switch *kind {
	case "l2p":
		r := l2p.Open(*file, 0, false, idxcache.NewLocal(1, 1), 0)
		h, err := r.Header()
		if err != nil {
			return err
		}
		fmt.Printf("first_revision=%d page_size=%d revision_count=%d page_count=%d\n",
			h.FirstRevision, h.PageSize, h.RevisionCount, int64(len(h.PageTable)))
		for i, p := range h.PageTable {
			fmt.Printf("  page[%d] offset=%s size=%s entries=%d\n",
				i, humanize.Bytes(uint64(p.Offset)), humanize.Bytes(uint64(p.SizeBytes)), p.EntryCount)
		}
	case "p2l":
		r := p2l.Open(*file, 0, false, idxcache.NewLocal(1, 1), 0, 0)
		h, err := r.Header()
		if err != nil {
			return err
		}
		fmt.Printf("first_revision=%d file_size=%s page_size=%s page_count=%d\n",
			h.FirstRevision, humanize.Bytes(uint64(h.FileSize)), humanize.Bytes(uint64(h.PageSize)), h.PageCount)
	default:
		return fmt.Errorf("unknown -kind %q", *kind)
	}
	return nil
}

func runPage(args []string) error {
	fs := flag.NewFlagSet("page", flag.ExitOnError)
	file := fs.String("file", "", "index file path")
	kind := kindFlag(fs)
	index := fs.Int64("index", -1, "page index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" || *index < 0 {
		return fmt.Errorf("-file and -index are required")
	}

	switch *kind {
	case "l2p":
		r := l2p.Open(*file, 0, false, idxcache.NewLocal(1, 16), 0)
		h, err := r.Header()
		if err != nil {
			return err
		}
		if *index >= int64(len(h.PageTable)) {
			return fmt.Errorf("page %d out of range (page_count=%d)", *index, len(h.PageTable))
		}
		fmt.Printf("page %d: offset=%s size=%s entries=%d\n",
			*index, humanize.Bytes(uint64(h.PageTable[*index].Offset)), humanize.Bytes(uint64(h.PageTable[*index].SizeBytes)), h.PageTable[*index].EntryCount)
	case "p2l":
		r := p2l.Open(*file, 0, false, idxcache.NewLocal(1, 16), 0, 0)
		h, err := r.Header()
		if err != nil {
			return err
		}
		if *index >= h.PageCount {
			return fmt.Errorf("page %d out of range (page_count=%d)", *index, h.PageCount)
		}
		entries, err := r.PageLookup(*index * h.PageSize)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("  item #%d offset=%s size=%s rev=%d type=%d fnv1=%08x\n",
				e.ItemNumber, humanize.Bytes(uint64(e.Offset)), humanize.Bytes(uint64(e.Size)), e.Revision, e.Type, e.Fnv1)
		}
	default:
		return fmt.Errorf("unknown -kind %q", *kind)
	}
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("file", "", "index file path")
	kind := kindFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	switch *kind {
	case "l2p":
		r := l2p.Open(*file, 0, false, idxcache.NewLocal(1, 64), 0)
		h, err := r.Header()
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		for rel := int64(0); rel < h.RevisionCount; rel++ {
			rev := h.FirstRevision + rel
			start := h.PageTableIndex[rel]
			for pageNo := int64(0); start+pageNo < h.PageTableIndex[rel+1]; pageNo++ {
				if h.PageTable[start+pageNo].EntryCount == 0 {
					continue
				}
				// Looking up a page's first slot decodes the whole page.
				item := uint64(pageNo * h.PageSize)
				if _, err := r.Lookup(rev, item); err != nil {
					fmt.Printf("revision %d item %d: %v\n", rev, item, err)
				}
			}
		}
		fmt.Printf("ok: %d revisions, %d pages\n", h.RevisionCount, len(h.PageTable))
	case "p2l":
		r := p2l.Open(*file, 0, false, idxcache.NewLocal(1, 64), 0, 0)
		h, err := r.Header()
		if err != nil {
			return fmt.Errorf("header: %w", err)
		}
		var covered int64
		for i := int64(0); i < h.PageCount; i++ {
			entries, err := r.PageLookup(i * h.PageSize)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			for _, e := range entries {
				covered += e.Size
			}
		}
		fmt.Printf("ok: file_size=%s, %d pages, %s accounted for by items\n",
			humanize.Bytes(uint64(h.FileSize)), h.PageCount, humanize.Bytes(uint64(covered)))
	default:
		return fmt.Errorf("unknown -kind %q", *kind)
	}
	return nil
}

func runBuildL2P(args []string) error {
	fs := flag.NewFlagSet("build-l2p", flag.ExitOnError)
	proto := fs.String("proto", "", "proto-index path")
	out := fs.String("out", "", "output index path")
	rev := fs.Int64("rev", 0, "first revision")
	pageSize := fs.Int64("page-size", 1000, "page size (slots)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *proto == "" || *out == "" {
		return fmt.Errorf("-proto and -out are required")
	}
	if err := l2p.Build(*proto, *out, *rev, *pageSize, 0); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runBuildP2L(args []string) error {
	fs := flag.NewFlagSet("build-p2l", flag.ExitOnError)
	proto := fs.String("proto", "", "proto-index path")
	out := fs.String("out", "", "output index path")
	rev := fs.Int64("rev", 0, "first revision")
	targetRev := fs.Int64("target-rev", 0, "revision to patch INVALID_REVISION entries to")
	pageSize := fs.Int64("page-size", 400, "page size (bytes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *proto == "" || *out == "" {
		return fmt.Errorf("-proto and -out are required")
	}
	if err := p2l.Build(*proto, *out, *targetRev, *rev, *pageSize, 0); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}
