package rrd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// RRDTool runs the rrdtool binary for exports and cache flushes. Exports
// use the XML output of "rrdtool xport"; no library binding is required.
type RRDTool struct {
	Bin string
	Log zerolog.Logger
}

type xportXML struct {
	Meta struct {
		Start   int64 `xml:"start"`
		Step    int64 `xml:"step"`
		End     int64 `xml:"end"`
		Columns int   `xml:"columns"`
		Legend  struct {
			Entries []string `xml:"entry"`
		} `xml:"legend"`
	} `xml:"meta"`
	Data struct {
		Rows []struct {
			T int64    `xml:"t"`
			V []string `xml:"v"`
		} `xml:"row"`
	} `xml:"data"`
}

func (r *RRDTool) bin() string {
	if r.Bin == "" {
		return "rrdtool"
	}
	return r.Bin
}

// Xport runs an export and decodes the XML reply into a flat sample buffer.
func (r *RRDTool) Xport(args []string) (*XportResult, error) {
	cmd := exec.Command(r.bin(), append([]string{}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("rrdtool xport: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	var reply xportXML
	if err := xml.Unmarshal(stdout.Bytes(), &reply); err != nil {
		return nil, fmt.Errorf("rrdtool xport: malformed reply: %w", err)
	}
	result := &XportResult{
		Start:   reply.Meta.Start,
		End:     reply.Meta.End,
		Step:    reply.Meta.Step,
		Legends: reply.Meta.Legend.Entries,
	}
	for _, row := range reply.Data.Rows {
		for _, v := range row.V {
			result.Values = append(result.Values, parseSample(v))
		}
	}
	return result, nil
}

func parseSample(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FlushCached asks the cache daemon to write out the given archive files.
func (r *RRDTool) FlushCached(daemonSocket string, paths []string) error {
	args := append([]string{"flushcached", "--daemon", daemonSocket}, paths...)
	r.Log.Debug().Strs("args", args).Msg("flushing archive cache")
	cmd := exec.Command(r.bin(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rrdtool flushcached: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
