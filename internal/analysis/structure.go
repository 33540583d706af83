package analysis

import (
	"context"
	"math"
	"strings"

	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/adapters"
	"github.com/hbtasdem/ECE30861-Team4-P2-sub001/internal/types"
)

const gib = 1024 * 1024 * 1024

// assumed footprint of a model that publishes neither parameters nor storage
const estimatedSizeGB = 1.0

// Device names as published in the size breakdown.
const (
	DeviceRaspberryPi = "raspberry_pi"
	DeviceJetsonNano  = "jetson_nano"
	DeviceDesktopPC   = "desktop_pc"
	DeviceAWSServer   = "aws_server"
)

// Devices lists deployment targets in presentation order.
var Devices = []string{DeviceRaspberryPi, DeviceJetsonNano, DeviceDesktopPC, DeviceAWSServer}

type deviceProfile struct {
	thresholdGB float64 // 0 means the model always fits
	weight      float64
}

var deviceProfiles = map[string]deviceProfile{
	DeviceRaspberryPi: {thresholdGB: 2, weight: 0.35},
	DeviceJetsonNano:  {thresholdGB: 4, weight: 0.25},
	DeviceDesktopPC:   {thresholdGB: 16, weight: 0.20},
	DeviceAWSServer:   {thresholdGB: 0, weight: 0.20},
}

// SizeEvaluator estimates how well the weights fit common deployment hardware.
// The breakdown carries one entry per device. Models without size information
// are scored as estimatedSizeGB.
type SizeEvaluator struct {
	provider adapters.Provider
}

func NewSizeEvaluator(p adapters.Provider) *SizeEvaluator { return &SizeEvaluator{provider: p} }

func (e *SizeEvaluator) Name() string { return MetricSize }

func (e *SizeEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		meta, _, err := e.provider.FetchArtifactMetadata(ctx, ref.ModelID)
		if err != nil || meta == nil {
			return Unavailable(), nil
		}
		b := make(map[string]float64, len(deviceProfiles)+1)
		sizeGB, ok := modelSizeGB(meta)
		if !ok {
			sizeGB = estimatedSizeGB
			b["estimated"] = 1
		}

		total := 0.0
		for _, device := range Devices {
			p := deviceProfiles[device]
			s := 1.0
			if p.thresholdGB > 0 {
				s = Round2(math.Max(0, 1-sizeGB/p.thresholdGB))
			}
			b[device] = s
			total += p.weight * s
		}
		return Available(Round2(total)), b
	})
}

// modelSizeGB prefers the fp32 parameter footprint and falls back to stored bytes.
func modelSizeGB(meta *types.ArtifactMetadata) (float64, bool) {
	if meta.ParameterCount > 0 {
		return float64(meta.ParameterCount) * 4 / gib, true
	}
	if meta.StorageBytes > 0 {
		return float64(meta.StorageBytes) / gib, true
	}
	return 0, false
}

var reputableBases = []string{
	"bert", "gpt2", "roberta", "t5", "bart", "distilbert", "llama", "mistral", "falcon",
	"bloom", "opt", "pythia", "gpt-neo", "gpt-j", "whisper", "wav2vec", "clip", "vit",
}

// TreeEvaluator scores the health of a model's declared lineage.
type TreeEvaluator struct {
	provider adapters.Provider
}

func NewTreeEvaluator(p adapters.Provider) *TreeEvaluator { return &TreeEvaluator{provider: p} }

func (e *TreeEvaluator) Name() string { return MetricTreeScore }

func (e *TreeEvaluator) Evaluate(ctx context.Context, ref types.ArtifactRef) Result {
	return timed(e.Name(), func() (Score, map[string]float64) {
		graph, err := e.provider.FetchDependencyGraph(ctx, ref.ModelID)
		if err != nil || graph == nil || len(graph.Parents) == 0 {
			return Available(0), nil
		}

		b := map[string]float64{"lineage": 0.3}
		for _, parent := range graph.Parents {
			if isReputableBase(parent.ID) {
				b["reputable_base"] = 0.5
			}
			if parent.HasParent {
				b["deep_lineage"] = 0.2
			}
		}
		total := b["lineage"] + b["reputable_base"] + b["deep_lineage"]
		return Available(Round2(math.Min(1, total))), b
	})
}

// isReputableBase matches the well-known families against the tokens of a model
// id. A token matches a family when it starts or ends with it, so "tinyllama"
// and "gpt-neox" match while "adaptive" does not match "opt".
func isReputableBase(id string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(id), func(r rune) bool {
		switch r {
		case '/', '-', '_', '.':
			return true
		}
		return false
	})
	for _, base := range reputableBases {
		if matchesFamily(tokens, strings.Split(base, "-")) {
			return true
		}
	}
	return false
}

// matchesFamily looks for family as a run of tokens. Leading family tokens must
// match exactly; the final one may be a prefix or suffix of its token.
func matchesFamily(tokens, family []string) bool {
	last := len(family) - 1
	for i := 0; i+last < len(tokens); i++ {
		ok := true
		for j := 0; j < last; j++ {
			if tokens[i+j] != family[j] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		tok := tokens[i+last]
		if strings.HasPrefix(tok, family[last]) || (last == 0 && strings.HasSuffix(tok, family[last])) {
			return true
		}
	}
	return false
}
