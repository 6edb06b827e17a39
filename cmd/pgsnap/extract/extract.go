// Copyright 2017-25 the original author or authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package extract implements the pgsnap extract command.
package extract

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"m4o.io/pgsnap"
	"m4o.io/pgsnap/cmd/pgsnap/cli"
	"m4o.io/pgsnap/model"
	"m4o.io/pgsnap/osmxml"
	"m4o.io/pgsnap/pgstore"
	"m4o.io/pgsnap/selector"
)

func init() {
	cli.RootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.String("dsn", "", "Postgres connection string (required)")
	flags.String("bbox", "", "bounding box as left,bottom,right,top in degrees")
	flags.StringArray("tag", nil, "tag selector: k=v, k, or k<op>n (repeatable, OR-combined)")
	flags.String("kind", "all", "entity kinds to stream: nodes, ways, relations, or all")
	flags.Bool("complete-ways", false, "pull nodes referenced by selected ways into the stream")
	flags.StringP("output", "o", "", "output file (default stdout)")
	flags.String("compress", "none", "compress output: none, gzip, or zstd")
	flags.Bool("progress", false, "show a progress counter on stderr")
	flags.Bool("stats", false, "print entity counts on stderr when done")

	_ = extractCmd.MarkFlagRequired("dsn")
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a filtered region as OSM XML",
	Long:  "Extract a filtered region as OSM XML",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		flags := cmd.Flags()

		dsn, _ := flags.GetString("dsn")
		bbox, _ := flags.GetString("bbox")
		tagExprs, _ := flags.GetStringArray("tag")
		kind, _ := flags.GetString("kind")
		completeWays, _ := flags.GetBool("complete-ways")
		output, _ := flags.GetString("output")
		compress, _ := flags.GetString("compress")
		progress, _ := flags.GetBool("progress")
		stats, _ := flags.GetBool("stats")

		bboxes, err := parseBBox(bbox)
		if err != nil {
			log.Fatal(err)
		}

		tags, err := parseTags(tagExprs)
		if err != nil {
			log.Fatal(err)
		}

		out, cleanup, err := openOutput(output, compress)
		if err != nil {
			log.Fatal(err)
		}

		if err := runExtract(out, dsn, kind, bboxes, tags, completeWays, progress, stats); err != nil {
			log.Fatal(err)
		}

		if err := cleanup(); err != nil {
			log.Fatal(err)
		}
	},
}

func runExtract(out io.Writer, dsn, kind string, bboxes []selector.BoundingBox,
	tags []selector.Selector, completeWays, progress, stats bool,
) error {
	ctx := context.Background()

	st, err := pgstore.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	session := pgsnap.NewSession(st)
	defer session.Release(ctx)

	stream, err := openStream(ctx, session, kind, bboxes, tags, completeWays)
	if err != nil {
		return err
	}
	defer stream.Close()

	var counter *cli.Counter
	if progress {
		counter = cli.NewCounter()
	}

	var nc, wc, rc int64

	encoder := osmxml.NewEncoder(out, osmxml.WithObserver(func(o model.Object) {
		if counter != nil {
			counter.Increment()
		}

		switch o.(type) {
		case *model.Node:
			nc++
		case *model.Way:
			wc++
		case *model.Relation:
			rc++
		}
	}))

	if err := encoder.Encode(stream); err != nil {
		return err
	}

	if counter != nil {
		counter.Finish()
	}

	stream.Close()

	if err := session.Complete(ctx); err != nil {
		return err
	}

	if stats {
		fmt.Fprintf(os.Stderr, "nodes: %s\n", humanize.Comma(nc))
		fmt.Fprintf(os.Stderr, "ways: %s\n", humanize.Comma(wc))
		fmt.Fprintf(os.Stderr, "relations: %s\n", humanize.Comma(rc))
	}

	return nil
}

func openStream(ctx context.Context, session *pgsnap.Session, kind string,
	bboxes []selector.BoundingBox, tags []selector.Selector, completeWays bool,
) (*pgsnap.Stream, error) {
	switch kind {
	case "nodes":
		return session.IterateSelectedNodes(ctx, bboxes, tags)
	case "ways":
		return session.IterateSelectedWays(ctx, bboxes, tags)
	case "relations":
		return session.IterateSelectedRelations(ctx, bboxes, tags)
	case "all":
		if len(bboxes) == 1 && len(tags) == 0 {
			box := bboxes[0].Box()

			return session.IterateBBox(ctx, box.Left, box.Right, box.Top, box.Bottom, completeWays)
		}

		if len(bboxes) == 0 && len(tags) == 0 {
			return session.Iterate(ctx)
		}

		return session.IterateSelectedAll(ctx, bboxes, tags)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func parseBBox(expr string) ([]selector.BoundingBox, error) {
	if expr == "" {
		return nil, nil
	}

	parts := strings.Split(expr, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox must be left,bottom,right,top, got %q", expr)
	}

	coords := make([]model.Degrees, 4)

	for i, p := range parts {
		d, err := model.ParseDegrees(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bbox coordinate %q: %w", p, err)
		}

		coords[i] = d
	}

	box, err := selector.NewBoundingBox(coords[0], coords[2], coords[3], coords[1])
	if err != nil {
		return nil, err
	}

	return []selector.BoundingBox{box}, nil
}

var compareOps = []string{"<=", ">=", "!=", "<", ">"}

func parseTags(exprs []string) ([]selector.Selector, error) {
	var tags []selector.Selector

	for _, expr := range exprs {
		s, err := parseTag(expr)
		if err != nil {
			return nil, err
		}

		tags = append(tags, s)
	}

	return tags, nil
}

func parseTag(expr string) (selector.Selector, error) {
	for _, op := range compareOps {
		if k, v, ok := strings.Cut(expr, op); ok {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("tag comparison %q: %w", expr, err)
			}

			return selector.NewTagCompare(k, op, n)
		}
	}

	if k, v, ok := strings.Cut(expr, "="); ok {
		return selector.TagEqual{Key: k, Value: v}, nil
	}

	return selector.TagExists{Key: expr}, nil
}

func openOutput(path, compress string) (io.Writer, func() error, error) {
	var out io.Writer = os.Stdout

	closers := make([]io.Closer, 0, 2)

	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}

		out = f

		closers = append(closers, f)
	}

	switch compress {
	case "none", "":
	case "gzip":
		zw := gzip.NewWriter(out)
		out = zw
		closers = append([]io.Closer{zw}, closers...)
	case "zstd":
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return nil, nil, err
		}

		out = zw
		closers = append([]io.Closer{zw}, closers...)
	default:
		return nil, nil, fmt.Errorf("unknown compression %q", compress)
	}

	cleanup := func() error {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				return err
			}
		}

		return nil
	}

	return out, cleanup, nil
}
