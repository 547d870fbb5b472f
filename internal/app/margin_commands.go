package app

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newGmxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gmx",
		Short: "Margin-protocol boundary calls",
	}
	cmd.AddCommand(s.newGmxApprovePluginCommand(), s.newGmxMinFeeCommand())
	return cmd
}

func (s *runtimeState) newGmxApprovePluginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-plugin",
		Short: "Authorize the position router as a margin-router plugin",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			hash, err := interactor.GmxApprovePlugin(cmd.Context(), s.chainID())
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
}

func (s *runtimeState) newGmxMinFeeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "min-execution-fee",
		Short: "Read the margin protocol's minimum execution fee",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			fee, err := interactor.GmxMinExecutionFee(cmd.Context(), s.chainID())
			if err != nil {
				return err
			}
			return s.render(map[string]string{"min_execution_fee": fee.String()})
		},
	}
}

func (s *runtimeState) newManagerCommand() *cobra.Command {
	var (
		address string
		enabled bool
	)
	cmd := &cobra.Command{
		Use:   "manager",
		Short: "Manage the vault's manager set",
	}
	set := &cobra.Command{
		Use:   "set",
		Short: "Enable or disable a manager identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			interactor, err := s.ensureInteractor(cmd)
			if err != nil {
				return err
			}
			hash, err := interactor.SetManager(cmd.Context(), s.chainID(), common.HexToAddress(address), enabled)
			if err != nil {
				return err
			}
			return s.render(swapResult{Chain: s.chainID(), TxHash: hash.Hex(), Status: "confirmed"})
		},
	}
	set.Flags().StringVar(&address, "address", "", "manager address")
	set.Flags().BoolVar(&enabled, "enabled", true, "manager flag value")
	_ = set.MarkFlagRequired("address")
	cmd.AddCommand(set)
	return cmd
}

func (s *runtimeState) newSubmissionsCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "Inspect the local submission journal",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List journaled submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.ensureStore()
			if err != nil {
				return err
			}
			if store == nil {
				return s.render([]struct{}{})
			}
			subs, err := store.List(status, limit)
			if err != nil {
				return err
			}
			return s.render(subs)
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (pending|confirmed|failed|unknown)")
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.AddCommand(list)
	return cmd
}
