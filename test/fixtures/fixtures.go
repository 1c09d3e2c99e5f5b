// Package fixtures provides test data generators for the flashT5
// pre-training pipeline.
package fixtures

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/V-Enzo/flashT5/internal/config"
	"github.com/V-Enzo/flashT5/internal/models"
)

// =============================================================================
// Raw Flow Fixtures
// =============================================================================

// FlowFixture generates raw dataset records in the ingest JSONL shape:
// hex-word packet text with <head>/<pkt> markers plus per-packet layer
// label groups.
type FlowFixture struct {
	rng     *rand.Rand
	counter int
}

// NewFlowFixture creates a generator seeded for reproducible output.
func NewFlowFixture(seed int64) *FlowFixture {
	return &FlowFixture{rng: rand.New(rand.NewSource(seed))}
}

// Flow generates one record with the given number of packets. Each
// packet carries headerWords header words and payloadWords payload
// words of random four-digit hex.
func (ff *FlowFixture) Flow(packets, headerWords, payloadWords int) models.RawRecord {
	ff.counter++

	var texts, labels []string
	for p := 0; p < packets; p++ {
		words := make([]string, 0, headerWords+payloadWords+2)
		for j := 0; j < headerWords; j++ {
			words = append(words, ff.hexWord())
		}
		words = append(words, "<head>")
		for j := 0; j < payloadWords; j++ {
			words = append(words, ff.hexWord())
		}
		words = append(words, "<pkt>")
		texts = append(texts, strings.Join(words, " "))
		labels = append(labels, fmt.Sprintf("%d,%d,%d,%d",
			ff.rng.Intn(2), ff.rng.Intn(3), ff.rng.Intn(3), ff.rng.Intn(4)))
	}

	return models.RawRecord{
		Path:              fmt.Sprintf("fixture-%04d.pcap", ff.counter),
		Text:              strings.Join(texts, " "),
		NetworkModelLayer: strings.Join(labels, ";"),
	}
}

// Flows generates count records with packet counts varying between 1
// and maxPackets.
func (ff *FlowFixture) Flows(count, maxPackets, headerWords, payloadWords int) []models.RawRecord {
	records := make([]models.RawRecord, count)
	for i := range records {
		records[i] = ff.Flow(1+ff.rng.Intn(maxPackets), headerWords, payloadWords)
	}
	return records
}

func (ff *FlowFixture) hexWord() string {
	return fmt.Sprintf("%04x", ff.rng.Intn(1<<16))
}

// =============================================================================
// Configuration Fixtures
// =============================================================================

// SmallConfig returns a pipeline configuration scaled down for tests:
// the same shape invariants as the defaults at a fraction of the
// tensor sizes.
func SmallConfig() *config.Config {
	return &config.Config{
		MaxLength:           96,
		OptimalLength:       128,
		MaxLabelsLength:     64,
		NoiseDensity:        0.15,
		MeanNoiseSpanLength: 3,
		MinMaskSpanLength:   5,
		PacketsPerFlow:      10,
		POPPercent:          0.3,
		POPSwitchGap:        2,
		NMLLabelGap:         4,
		BatchSize:           4,
		Seed:                42,
		NumWorkers:          2,
	}
}
