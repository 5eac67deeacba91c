package snowflake

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	errInvalidMachineID    = errors.New("invalid snowflake machine id")
	errInvalidDataCenterID = errors.New("invalid snowflake datacenter id")
	errGeneratorUninitial  = errors.New("snowflake generator is not initialized")
)

// Generator 生成 batch id，datacenterID 和 machineID 都是 0~31
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(machineID, dataCenterID int64) (*Generator, error) {
	if machineID < 0 || machineID > 31 {
		return nil, errInvalidMachineID
	}
	if dataCenterID < 0 || dataCenterID > 31 {
		return nil, errInvalidDataCenterID
	}

	node, err := snowflake.NewNode((dataCenterID << 5) | machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &Generator{node: node}, nil
}

// NextID 签名与 telemetry.WithBatchIDFunc 一致
func (g *Generator) NextID() (int64, error) {
	if g == nil || g.node == nil {
		return 0, errGeneratorUninitial
	}

	return g.node.Generate().Int64(), nil
}
