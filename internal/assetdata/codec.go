// Package assetdata decodes exchange asset-proxy payloads into asset descriptors.
package assetdata

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"fillScope/internal/model"
)

// Codec decodes encoded asset data. It is safe for concurrent use.
type Codec struct {
	proxyABI abi.ABI
}

// NewCodec builds a Codec from the asset proxy ABI.
func NewCodec() (*Codec, error) {
	parsed, err := ProxyABI()
	if err != nil {
		return nil, fmt.Errorf("parse proxy abi: %w", err)
	}
	return &Codec{proxyABI: parsed}, nil
}

// Decode turns a hex payload into asset descriptors. totalAmount becomes the amount of
// single-asset encodings; ERC1155 entries carry their own values. An empty payload yields
// no descriptors.
func (c *Codec) Decode(payload string, totalAmount *big.Int) ([]model.AssetDescriptor, error) {
	data, err := decodeHex(payload)
	if err != nil {
		return nil, err
	}
	if isEmpty(data) {
		return []model.AssetDescriptor{}, nil
	}
	return c.decode(data, totalAmount, true)
}

func (c *Codec) decode(data []byte, totalAmount *big.Int, allowNested bool) ([]model.AssetDescriptor, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: payload shorter than selector", model.ErrUnsupportedAsset)
	}
	method, err := c.proxyABI.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: unknown proxy id %s", model.ErrUnsupportedAsset, hexutil.Encode(data[:4]))
	}

	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %v", model.ErrUnsupportedAsset, method.Name, err)
	}

	switch method.Name {
	case methodERC20:
		token, err := asAddress(values, 0)
		if err != nil {
			return nil, err
		}
		return []model.AssetDescriptor{{
			TokenAddress: token,
			TokenType:    model.TokenTypeERC20,
			Amount:       model.AmountFromBig(totalAmount),
		}}, nil
	case methodERC721:
		token, err := asAddress(values, 0)
		if err != nil {
			return nil, err
		}
		tokenID, err := asBigInt(values, 1)
		if err != nil {
			return nil, err
		}
		id := model.AmountFromBig(tokenID)
		return []model.AssetDescriptor{{
			TokenAddress: token,
			TokenType:    model.TokenTypeERC721,
			Amount:       model.AmountFromBig(totalAmount),
			TokenID:      &id,
		}}, nil
	case methodERC20Bridge:
		token, err := asAddress(values, 0)
		if err != nil {
			return nil, err
		}
		bridge, err := asAddress(values, 1)
		if err != nil {
			return nil, err
		}
		bridgeData, ok := values[2].([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: bridge data type %T", model.ErrUnsupportedAsset, values[2])
		}
		return []model.AssetDescriptor{{
			TokenAddress:  token,
			TokenType:     model.TokenTypeERC20,
			Amount:        model.AmountFromBig(totalAmount),
			BridgeAddress: bridge,
			BridgeData:    hexutil.Encode(bridgeData),
		}}, nil
	case methodERC1155:
		return decodeERC1155(values)
	case methodMultiAsset:
		if !allowNested {
			return nil, fmt.Errorf("%w: nested multi-asset", model.ErrUnsupportedAsset)
		}
		return c.decodeMultiAsset(values)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedAsset, method.Name)
	}
}

func decodeERC1155(values []interface{}) ([]model.AssetDescriptor, error) {
	token, err := asAddress(values, 0)
	if err != nil {
		return nil, err
	}
	ids, ok := values[1].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: erc1155 token ids type %T", model.ErrUnsupportedAsset, values[1])
	}
	amounts, ok := values[2].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: erc1155 token values type %T", model.ErrUnsupportedAsset, values[2])
	}
	if len(ids) != len(amounts) {
		return nil, fmt.Errorf("%w: erc1155 ids/values length mismatch %d != %d", model.ErrUnsupportedAsset, len(ids), len(amounts))
	}

	out := make([]model.AssetDescriptor, 0, len(ids))
	for i := range ids {
		id := model.AmountFromBig(ids[i])
		out = append(out, model.AssetDescriptor{
			TokenAddress: token,
			TokenType:    model.TokenTypeERC1155,
			Amount:       model.AmountFromBig(amounts[i]),
			TokenID:      &id,
		})
	}
	return out, nil
}

func (c *Codec) decodeMultiAsset(values []interface{}) ([]model.AssetDescriptor, error) {
	amounts, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: multi-asset amounts type %T", model.ErrUnsupportedAsset, values[0])
	}
	nested, ok := values[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: multi-asset nested data type %T", model.ErrUnsupportedAsset, values[1])
	}
	if len(amounts) != len(nested) {
		return nil, fmt.Errorf("%w: multi-asset length mismatch %d != %d", model.ErrUnsupportedAsset, len(amounts), len(nested))
	}

	out := make([]model.AssetDescriptor, 0, len(nested))
	for i, data := range nested {
		decoded, err := c.decode(data, amounts[i], false)
		if err != nil {
			return nil, fmt.Errorf("nested asset %d: %w", i, err)
		}
		out = append(out, decoded...)
	}
	return out, nil
}

func decodeHex(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "0x" {
		return nil, nil
	}
	if !strings.HasPrefix(payload, "0x") && !strings.HasPrefix(payload, "0X") {
		payload = "0x" + payload
	}
	data, err := hexutil.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUnsupportedAsset, err)
	}
	return data, nil
}

func isEmpty(data []byte) bool {
	return len(bytes.Trim(data, "\x00")) == 0
}

func asAddress(values []interface{}, i int) (string, error) {
	if i >= len(values) {
		return "", fmt.Errorf("%w: missing value %d", model.ErrUnsupportedAsset, i)
	}
	addr, ok := values[i].(common.Address)
	if !ok {
		return "", fmt.Errorf("%w: address type %T", model.ErrUnsupportedAsset, values[i])
	}
	return strings.ToLower(addr.Hex()), nil
}

func asBigInt(values []interface{}, i int) (*big.Int, error) {
	if i >= len(values) {
		return nil, fmt.Errorf("%w: missing value %d", model.ErrUnsupportedAsset, i)
	}
	v, ok := values[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: integer type %T", model.ErrUnsupportedAsset, values[i])
	}
	return v, nil
}
