package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spherical/pdf-diff/internal/domain"
)

// TesseractCLI shells out to the tesseract binary and parses its TSV output.
type TesseractCLI struct {
	path      string
	languages []string
}

// NewTesseractCLI constructs an engine around the tesseract executable at path.
func NewTesseractCLI(path string, languages []string) *TesseractCLI {
	if path == "" {
		path = "tesseract"
	}
	return &TesseractCLI{path: path, languages: languages}
}

func (e *TesseractCLI) Name() string { return "tesseract-cli" }

// Recognize runs `tesseract <image> stdout -l <langs> tsv`.
func (e *TesseractCLI) Recognize(ctx context.Context, imagePath string) (domain.OCRResult, error) {
	bin, err := exec.LookPath(e.path)
	if err != nil {
		return domain.OCRResult{}, domain.CapabilityError("tesseract binary not found", err)
	}

	args := []string{imagePath, "stdout"}
	if len(e.languages) > 0 {
		args = append(args, "-l", strings.Join(e.languages, "+"))
	}
	args = append(args, "tsv")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return domain.OCRResult{}, fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return ParseTSV(&stdout)
}

// TSV column indexes of tesseract's tsv output.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const wordLevel = 5

// ParseTSV converts tesseract TSV output into page text and word boxes.
// Words on the same block/paragraph/line are joined by spaces, lines by newlines.
func ParseTSV(r io.Reader) (domain.OCRResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		words    []domain.WordBox
		text     strings.Builder
		lastLine string
		header   = true
	)

	for scanner.Scan() {
		line := scanner.Text()
		if header {
			header = false
			if strings.HasPrefix(line, "level") {
				continue
			}
		}

		fields := strings.Split(line, "\t")
		if len(fields) < tsvColumns-1 {
			continue
		}
		if level, err := strconv.Atoi(fields[colLevel]); err != nil || level != wordLevel {
			continue
		}

		word := ""
		if len(fields) >= tsvColumns {
			word = strings.TrimSpace(fields[colText])
		}
		if word == "" {
			continue
		}

		left, _ := strconv.Atoi(fields[colLeft])
		top, _ := strconv.Atoi(fields[colTop])
		width, _ := strconv.Atoi(fields[colWidth])
		height, _ := strconv.Atoi(fields[colHeight])
		conf, _ := strconv.ParseFloat(fields[colConf], 64)

		key := fields[colPage] + "/" + fields[colBlock] + "/" + fields[colPar] + "/" + fields[colLine]
		switch {
		case text.Len() == 0:
		case key != lastLine:
			text.WriteByte('\n')
		default:
			text.WriteByte(' ')
		}
		text.WriteString(word)
		lastLine = key

		words = append(words, domain.WordBox{
			Text:       word,
			Box:        domain.Rect{Left: left, Top: top, Width: width, Height: height},
			Confidence: clampConfidence(conf),
		})
	}
	if err := scanner.Err(); err != nil {
		return domain.OCRResult{}, fmt.Errorf("read tsv: %w", err)
	}

	return domain.OCRResult{Text: text.String(), Words: cleanWords(words)}, nil
}
