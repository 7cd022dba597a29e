package service

import (
	"context"
	"fmt"

	"wager-ledger/internal/core/domain"
	"wager-ledger/internal/core/ports"
	"wager-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// BlockListServiceImpl implements ports.BlockListService.
type BlockListServiceImpl struct {
	blocks ports.BlockList
	digits int
	log    zerolog.Logger
}

func NewBlockListService(blocks ports.BlockList, settings LedgerSettings, log zerolog.Logger) *BlockListServiceImpl {
	return &BlockListServiceImpl{blocks: blocks, digits: settings.NumberDigits, log: log}
}

// SetBlock expands mode/value for the configured digit count and adds every
// resulting number. It returns the numbers that were added.
func (s *BlockListServiceImpl) SetBlock(ctx context.Context, mode domain.BlockMode, value string) ([]string, error) {
	numbers, err := domain.ExpandBlock(mode, value, s.digits)
	if err != nil {
		return nil, apperror.ErrInvalidBlock(err.Error())
	}
	if err := s.blocks.Add(ctx, numbers...); err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("add blocks: %w", err))
	}
	s.log.Info().Str("mode", string(mode)).Str("value", value).Int("count", len(numbers)).Msg("numbers blocked")
	return numbers, nil
}

func (s *BlockListServiceImpl) Remove(ctx context.Context, number string) error {
	if !domain.IsValidNumber(number, s.digits) {
		return apperror.ErrInvalidBlock(fmt.Sprintf("number must be exactly %d digits", s.digits))
	}
	if err := s.blocks.Remove(ctx, number); err != nil {
		return apperror.ErrStorageUnavailable(fmt.Errorf("remove block: %w", err))
	}
	s.log.Info().Str("number", number).Msg("number unblocked")
	return nil
}

func (s *BlockListServiceImpl) Clear(ctx context.Context) error {
	if err := s.blocks.Clear(ctx); err != nil {
		return apperror.ErrStorageUnavailable(fmt.Errorf("clear blocks: %w", err))
	}
	s.log.Info().Msg("block list cleared")
	return nil
}

func (s *BlockListServiceImpl) List(ctx context.Context) ([]string, error) {
	numbers, err := s.blocks.List(ctx)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("list blocks: %w", err))
	}
	if numbers == nil {
		numbers = []string{}
	}
	return numbers, nil
}
