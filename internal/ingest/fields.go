package ingest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrUndecodable marks a log whose topic0 is known but whose layout does not match the event.
var ErrUndecodable = errors.New("undecodable log")

// fields holds the decoded arguments of one log. Accessors record the first type mismatch in err
// and return a zero value, so builders can read every field before a single error check.
type fields struct {
	values map[string]interface{}
	err    error
}

func unpackLog(event abi.Event, log types.Log) (*fields, error) {
	indexed := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("%w: %s: expected %d topics, got %d", ErrUndecodable, event.Name, len(indexed)+1, len(log.Topics))
	}

	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %s: parse topics: %v", ErrUndecodable, event.Name, err)
	}
	if err := event.Inputs.UnpackIntoMap(values, log.Data); err != nil {
		return nil, fmt.Errorf("%w: %s: unpack data: %v", ErrUndecodable, event.Name, err)
	}
	return &fields{values: values}, nil
}

func (f *fields) has(name string) bool {
	_, ok := f.values[name]
	return ok
}

func (f *fields) fail(name string, err error) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s: %v", ErrUndecodable, name, err)
	}
}

func (f *fields) address(name string) string {
	addr, err := asAddress(f.values[name])
	if err != nil {
		f.fail(name, err)
		return ""
	}
	return lowerHex(addr)
}

func (f *fields) bigInt(name string) *big.Int {
	v, err := asBigInt(f.values[name])
	if err != nil {
		f.fail(name, err)
		return new(big.Int)
	}
	return v
}

func (f *fields) amount(name string) string {
	return f.bigInt(name).String()
}

func (f *fields) word(name string) string {
	switch v := f.values[name].(type) {
	case [32]byte:
		return hexutil.Encode(v[:])
	case common.Hash:
		return hexutil.Encode(v[:])
	default:
		f.fail(name, fmt.Errorf("unsupported bytes32 type %T", v))
		return ""
	}
}

func (f *fields) bytes(name string) string {
	v, ok := f.values[name].([]byte)
	if !ok {
		f.fail(name, fmt.Errorf("unsupported bytes type %T", f.values[name]))
		return ""
	}
	return hexutil.Encode(v)
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
