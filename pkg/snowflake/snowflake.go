package snowflake

import (
	"errors"

	sf "github.com/bwmarrin/snowflake"
)

var node *sf.Node

// Init 初始化雪花算法节点
func Init(machineID int64) (err error) {
	node, err = sf.NewNode(machineID)
	return err
}

// GetID 生成一个全局唯一ID
func GetID() (uint64, error) {
	if node == nil {
		return 0, errors.New("snowflake not initialized; call Init")
	}
	return uint64(node.Generate().Int64()), nil
}
