package augment

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxSampleRows  = 5
	DefaultMaxSampleBytes = 2048
	DefaultMaxImages      = 3
	maxImageBytes         = 4 << 20
)

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var tabularExt = map[string]bool{".csv": true, ".tsv": true, ".tab": true, ".txt": true}

// Sample is a short excerpt of one dataset file.
type Sample struct {
	Name string
	Path string
	Text string
	// MIME and Data are set for image files.
	MIME string
	Data []byte
}

func (s Sample) IsImage() bool { return s.MIME != "" }

// Sampler reads excerpts of dataset files for the prompt.
type Sampler struct {
	MaxRows   int
	MaxBytes  int
	MaxImages int
}

func DefaultSampler() Sampler {
	return Sampler{MaxRows: DefaultMaxSampleRows, MaxBytes: DefaultMaxSampleBytes, MaxImages: DefaultMaxImages}
}

// Collect samples files (name -> path) in name order. Unreadable and
// binary files are listed by name only; images beyond MaxImages are
// dropped.
func (s Sampler) Collect(files map[string]string) []Sample {
	images := 0
	return s.collect(files, &images)
}

// CollectRequest samples the inputs and outputs of one request. MaxImages
// bounds the images of both lists together.
func (s Sampler) CollectRequest(req Request) (inputs, outputs []Sample) {
	images := 0
	return s.collect(req.InputFiles, &images), s.collect(req.OutputFiles, &images)
}

func (s Sampler) collect(files map[string]string, images *int) []Sample {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Sample
	for _, name := range names {
		path := files[name]
		ext := strings.ToLower(filepath.Ext(name))
		if mime, ok := imageMIME[ext]; ok {
			if *images >= s.MaxImages {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil || len(data) > maxImageBytes {
				out = append(out, Sample{Name: name, Path: path})
				continue
			}
			*images++
			out = append(out, Sample{Name: name, Path: path, MIME: mime, Data: data})
			continue
		}
		out = append(out, Sample{Name: name, Path: path, Text: s.readText(path, tabularExt[ext])})
	}
	return out
}

func (s Sampler) readText(path string, tabular bool) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	var buf bytes.Buffer
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	rows := 0
	for sc.Scan() {
		line := sc.Bytes()
		if !utf8.Valid(line) {
			return ""
		}
		if buf.Len()+len(line)+1 > s.MaxBytes {
			break
		}
		buf.Write(line)
		buf.WriteByte('\n')
		rows++
		if tabular && rows > s.MaxRows {
			break
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

// formatSamples renders text samples for a prompt. Images are listed by
// name; providers that accept inline data attach them separately.
func formatSamples(samples []Sample) string {
	if len(samples) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(samples))
	for _, smp := range samples {
		switch {
		case smp.IsImage():
			parts = append(parts, fmt.Sprintf("File: %s\n[image %s]", smp.Name, smp.MIME))
		case smp.Text == "":
			parts = append(parts, fmt.Sprintf("File: %s\n[no preview available]", smp.Name))
		default:
			parts = append(parts, fmt.Sprintf("File: %s\n%s", smp.Name, smp.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}
