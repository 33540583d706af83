package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	urfave "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/report"
)

const scoreConcurrency = 4

var (
	codeFlag = &urfave.StringFlag{
		Name:  "code",
		Usage: "Source repository URL of the model (optional)",
	}

	datasetFlag = &urfave.StringFlag{
		Name:  "dataset",
		Usage: "Dataset URL of the model (optional)",
	}

	scoreCmd = &urfave.Command{
		Name:      "score",
		Usage:     "Score every model listed in a CSV file",
		ArgsUsage: "FILE",
		UsageText: `modelmeter score urls.csv          # rows of code_link,dataset_link,model_link
   modelmeter --debug score urls.csv  # verbose logs on stderr`,
		Action: cmdScore,
	}

	rateCmd = &urfave.Command{
		Name:      "rate",
		Usage:     "Score a single model",
		ArgsUsage: "URL",
		UsageText: `modelmeter rate https://huggingface.co/google-bert/bert-base-uncased
   modelmeter rate --code https://github.com/org/repo --dataset https://huggingface.co/datasets/org/data org/model`,
		Action: cmdRate,
		Flags: []urfave.Flag{
			codeFlag,
			datasetFlag,
		},
	}
)

// row is one line of a URL file
type row struct {
	line    int
	code    string
	dataset string
	model   string
}

// readRows parses code_link,dataset_link,model_link lines. Short rows are
// padded and rows without a model link are skipped.
func readRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		for len(record) < 3 {
			record = append(record, "")
		}
		line, _ := reader.FieldPos(0)
		rw := row{
			line:    line,
			code:    strings.TrimSpace(record[0]),
			dataset: strings.TrimSpace(record[1]),
			model:   strings.TrimSpace(record[2]),
		}
		if rw.model == "" {
			continue
		}
		rows = append(rows, rw)
	}
}

func cmdScore(c *urfave.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one FILE argument, got %d", c.NArg())
	}
	path := c.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return err
	}

	s := getScorer(c)
	logger := getLogger(c)
	ratings := make([]*report.ModelRating, len(rows))

	g := new(errgroup.Group)
	g.SetLimit(scoreConcurrency)
	for i, rw := range rows {
		g.Go(func() error {
			rep, err := s.ScoreURL(c.Context, rw.model, rw.code, rw.dataset)
			if err != nil {
				logger.Warn("Skipping unscorable row", "line", rw.line, "model", rw.model, "error", err)
				return nil
			}
			rating := report.FromScoreReport(rep)
			ratings[i] = &rating
			return nil
		})
	}
	_ = g.Wait()

	scored := 0
	for _, rating := range ratings {
		if rating == nil {
			continue
		}
		if err := report.WriteNDJSON(c.App.Writer, *rating); err != nil {
			return fmt.Errorf("writing rating: %w", err)
		}
		scored++
	}

	logger.Info("Scoring complete", "file", path, "rows", len(rows), "scored", scored)
	return nil
}

func cmdRate(c *urfave.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one URL argument, got %d", c.NArg())
	}

	rep, err := getScorer(c).ScoreURL(c.Context, c.Args().First(), c.String(codeFlag.Name), c.String(datasetFlag.Name))
	if err != nil {
		return err
	}
	return report.WriteNDJSON(c.App.Writer, report.FromScoreReport(rep))
}
