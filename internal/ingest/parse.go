package ingest

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"fillScope/internal/model"
)

// ParseAddresses converts emitter addresses into common.Address, dropping blanks and repeats.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	seen := make(map[common.Address]bool, len(inputs))
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ResolveTopics turns a topic0 filter into hashes. Each entry is either a 32-byte hex topic or an
// event type name such as LimitOrderFilled; a name selects every log variant decoded into that type.
func (d *Decoder) ResolveTopics(inputs []string) ([]common.Hash, error) {
	seen := make(map[common.Hash]bool)
	var topics []common.Hash
	add := func(topic common.Hash) {
		if !seen[topic] {
			seen[topic] = true
			topics = append(topics, topic)
		}
	}

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "0x") {
			data, err := hexutil.Decode(input)
			if err != nil {
				return nil, fmt.Errorf("invalid topic0: %s", input)
			}
			if len(data) != common.HashLength {
				return nil, fmt.Errorf("invalid topic0 length: %s", input)
			}
			add(common.BytesToHash(data))
			continue
		}

		eventType, err := model.ParseEventType(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %w", err)
		}
		for topic, spec := range d.specs {
			if spec.produces(eventType) {
				add(topic)
			}
		}
	}
	return topics, nil
}

func (s eventSpec) produces(t model.EventType) bool {
	if s.swap == swapPair {
		return t == model.EventTypeUniswapV2Swap || t == model.EventTypeSushiswapSwap
	}
	return s.eventType == t
}
