package client

import (
	"context"

	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/sdkerr"
)

// BlockError pairs a failed block id with the error ReadBlock returned for
// it, collected by ReadGroupEx under partialOK. StreamGroup reports
// failures as StreamResult.Err instead.
type BlockError struct {
	BlockID int
	Err     error
}

// GroupResult is ReadGroupEx's return value: the records that succeeded,
// in profile order, and the per-block failures alongside them.
type GroupResult struct {
	Records []*parser.ParsedRecord
	Errors  []BlockError
	Partial bool
}

// blockVisitor is notified of each block's ReadBlock result as groupReader
// walks a group, in profile order. It returns whether the walk should
// continue; StreamGroup uses this to stop on context cancellation.
type blockVisitor func(blockID int, record *parser.ParsedRecord, err error) bool

// groupReader walks group's blocks in profile order, calling ReadBlock for
// each and reporting the result to visit (if non-nil) before applying
// partialOK. Under partialOK a failure is recorded and iteration
// continues; otherwise the first failure stops iteration and is returned
// as err. This is the one shared walk behind ReadGroup, ReadGroupEx, and
// StreamGroup.
func (c *Client) groupReader(ctx context.Context, group string, partialOK bool, visit blockVisitor) (records []*parser.ParsedRecord, failures []BlockError, err error) {
	gd, ok := c.profile.Groups[group]
	if !ok {
		return nil, nil, sdkerr.DeviceError("unknown group %q", group)
	}

	for _, blockID := range gd.Blocks {
		record, readErr := c.ReadBlock(ctx, blockID)
		if visit != nil && !visit(blockID, record, readErr) {
			return records, failures, readErr
		}
		if readErr != nil {
			if partialOK {
				failures = append(failures, BlockError{BlockID: blockID, Err: readErr})
				continue
			}
			return records, failures, readErr
		}
		records = append(records, record)
	}
	return records, failures, nil
}

// ReadGroup reads every block in group, in profile order. Under partialOK
// a failing block is skipped rather than aborting the whole group.
func (c *Client) ReadGroup(ctx context.Context, group string, partialOK bool) ([]*parser.ParsedRecord, error) {
	records, _, err := c.groupReader(ctx, group, partialOK, nil)
	return records, err
}

// ReadGroupEx is ReadGroup plus the per-block failures and a summary
// Partial flag.
func (c *Client) ReadGroupEx(ctx context.Context, group string, partialOK bool) (*GroupResult, error) {
	records, failures, err := c.groupReader(ctx, group, partialOK, nil)
	if err != nil && !partialOK {
		return nil, err
	}
	return &GroupResult{Records: records, Errors: failures, Partial: len(failures) > 0}, nil
}

// StreamResult is one element of a StreamGroup channel: either a
// successfully parsed record, or the error reading its block produced.
type StreamResult struct {
	BlockID int
	Record  *parser.ParsedRecord
	Err     error
}

// StreamGroup reads group's blocks one at a time, in profile order,
// pushing each result onto the returned channel as it completes. The
// channel is closed once the group is exhausted, the context is
// cancelled, or (under !partialOK) a block fails.
func (c *Client) StreamGroup(ctx context.Context, group string, partialOK bool) (<-chan StreamResult, error) {
	if _, ok := c.profile.Groups[group]; !ok {
		return nil, sdkerr.DeviceError("unknown group %q", group)
	}

	out := make(chan StreamResult)
	go func() {
		defer close(out)
		c.groupReader(ctx, group, partialOK, func(blockID int, record *parser.ParsedRecord, err error) bool {
			select {
			case out <- StreamResult{BlockID: blockID, Record: record, Err: err}:
			case <-ctx.Done():
				return false
			}
			return err == nil || partialOK
		})
	}()
	return out, nil
}
