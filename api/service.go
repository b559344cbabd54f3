// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"

	"github.com/ava-labs/hypersdk/codec"
	"github.com/ava-labs/hypersdk/x/operatorfilter/addresses"
	"github.com/ava-labs/hypersdk/x/operatorfilter/registry"
)

const ServiceName = "operatorfilter"

type RegistrantArgs struct {
	Registrant string `json:"registrant"`
}

type TargetArgs struct {
	Registrant string `json:"registrant"`
	Target     string `json:"target"`
}

type OperatorArgs struct {
	Registrant string `json:"registrant"`
	Operator   string `json:"operator"`
	Filtered   bool   `json:"filtered"`
}

type OperatorsArgs struct {
	Registrant string   `json:"registrant"`
	Operators  []string `json:"operators"`
	Filtered   bool     `json:"filtered"`
}

type CodeHashArgs struct {
	Registrant string `json:"registrant"`
	CodeHash   string `json:"codeHash"`
	Filtered   bool   `json:"filtered"`
}

type CodeHashesArgs struct {
	Registrant string   `json:"registrant"`
	CodeHashes []string `json:"codeHashes"`
	Filtered   bool     `json:"filtered"`
}

type UnsubscribeArgs struct {
	Registrant          string `json:"registrant"`
	CopyExistingEntries bool   `json:"copyExistingEntries"`
}

type AccountArgs struct {
	Account string `json:"account"`
}

type SuccessReply struct {
	Success bool `json:"success"`
}

type BoolReply struct {
	Value bool `json:"value"`
}

type AddressesReply struct {
	Addresses []string `json:"addresses"`
}

type CodeHashesReply struct {
	CodeHashes []string `json:"codeHashes"`
}

type CodeHashReply struct {
	CodeHash string `json:"codeHash"`
}

type SubscriptionReply struct {
	Subscription string `json:"subscription,omitempty"`
	Subscribed   bool   `json:"subscribed"`
}

// Service exposes a FilterRegistry over JSON-RPC. Mutations act as the
// caller authenticated by the request's signature headers.
type Service struct {
	registry registry.FilterRegistry
}

func (s *Service) Register(r *http.Request, args *RegistrantArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	if err := s.registry.Register(r.Context(), CallerFrom(r.Context()), registrant); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) RegisterAndSubscribe(r *http.Request, args *TargetArgs, reply *SuccessReply) error {
	registrant, target, err := parseTarget(args)
	if err != nil {
		return err
	}
	if err := s.registry.RegisterAndSubscribe(r.Context(), CallerFrom(r.Context()), registrant, target); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) RegisterAndCopyEntries(r *http.Request, args *TargetArgs, reply *SuccessReply) error {
	registrant, target, err := parseTarget(args)
	if err != nil {
		return err
	}
	if err := s.registry.RegisterAndCopyEntries(r.Context(), CallerFrom(r.Context()), registrant, target); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) Unregister(r *http.Request, args *RegistrantArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	if err := s.registry.Unregister(r.Context(), CallerFrom(r.Context()), registrant); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) UpdateOperator(r *http.Request, args *OperatorArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operator, err := addresses.Parse(args.Operator)
	if err != nil {
		return err
	}
	if err := s.registry.UpdateOperator(r.Context(), CallerFrom(r.Context()), registrant, operator, args.Filtered); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) UpdateOperators(r *http.Request, args *OperatorsArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operators, err := addresses.ParseAll(args.Operators)
	if err != nil {
		return err
	}
	if err := s.registry.UpdateOperators(r.Context(), CallerFrom(r.Context()), registrant, operators, args.Filtered); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) UpdateCodeHash(r *http.Request, args *CodeHashArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	codeHash, err := addresses.ParseCodeHash(args.CodeHash)
	if err != nil {
		return err
	}
	if err := s.registry.UpdateCodeHash(r.Context(), CallerFrom(r.Context()), registrant, codeHash, args.Filtered); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) UpdateCodeHashes(r *http.Request, args *CodeHashesArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	codeHashes, err := addresses.ParseCodeHashes(args.CodeHashes)
	if err != nil {
		return err
	}
	if err := s.registry.UpdateCodeHashes(r.Context(), CallerFrom(r.Context()), registrant, codeHashes, args.Filtered); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) Subscribe(r *http.Request, args *TargetArgs, reply *SuccessReply) error {
	registrant, target, err := parseTarget(args)
	if err != nil {
		return err
	}
	if err := s.registry.Subscribe(r.Context(), CallerFrom(r.Context()), registrant, target); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) Unsubscribe(r *http.Request, args *UnsubscribeArgs, reply *SuccessReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	if err := s.registry.Unsubscribe(r.Context(), CallerFrom(r.Context()), registrant, args.CopyExistingEntries); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) CopyEntriesOf(r *http.Request, args *TargetArgs, reply *SuccessReply) error {
	registrant, target, err := parseTarget(args)
	if err != nil {
		return err
	}
	if err := s.registry.CopyEntriesOf(r.Context(), CallerFrom(r.Context()), registrant, target); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

func (s *Service) IsOperatorAllowed(r *http.Request, args *OperatorArgs, reply *BoolReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operator, err := addresses.Parse(args.Operator)
	if err != nil {
		return err
	}
	reply.Value, err = s.registry.IsOperatorAllowed(r.Context(), registrant, operator)
	return err
}

func (s *Service) IsRegistered(r *http.Request, args *RegistrantArgs, reply *BoolReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	reply.Value, err = s.registry.IsRegistered(r.Context(), registrant)
	return err
}

func (s *Service) IsOperatorFiltered(r *http.Request, args *OperatorArgs, reply *BoolReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operator, err := addresses.Parse(args.Operator)
	if err != nil {
		return err
	}
	reply.Value, err = s.registry.IsOperatorFiltered(r.Context(), registrant, operator)
	return err
}

func (s *Service) IsCodeHashFiltered(r *http.Request, args *CodeHashArgs, reply *BoolReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	codeHash, err := addresses.ParseCodeHash(args.CodeHash)
	if err != nil {
		return err
	}
	reply.Value, err = s.registry.IsCodeHashFiltered(r.Context(), registrant, codeHash)
	return err
}

func (s *Service) IsCodeHashOfFiltered(r *http.Request, args *OperatorArgs, reply *BoolReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operator, err := addresses.Parse(args.Operator)
	if err != nil {
		return err
	}
	reply.Value, err = s.registry.IsCodeHashOfFiltered(r.Context(), registrant, operator)
	return err
}

func (s *Service) FilteredOperators(r *http.Request, args *RegistrantArgs, reply *AddressesReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	operators, err := s.registry.FilteredOperators(r.Context(), registrant)
	if err != nil {
		return err
	}
	reply.Addresses = addresses.FormatAll(operators)
	return nil
}

func (s *Service) FilteredCodeHashes(r *http.Request, args *RegistrantArgs, reply *CodeHashesReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	codeHashes, err := s.registry.FilteredCodeHashes(r.Context(), registrant)
	if err != nil {
		return err
	}
	reply.CodeHashes = addresses.FormatCodeHashes(codeHashes)
	return nil
}

func (s *Service) SubscriptionOf(r *http.Request, args *RegistrantArgs, reply *SubscriptionReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	subscription, subscribed, err := s.registry.SubscriptionOf(r.Context(), registrant)
	if err != nil {
		return err
	}
	reply.Subscribed = subscribed
	if subscribed {
		reply.Subscription = addresses.Format(subscription)
	}
	return nil
}

func (s *Service) Subscribers(r *http.Request, args *RegistrantArgs, reply *AddressesReply) error {
	registrant, err := addresses.Parse(args.Registrant)
	if err != nil {
		return err
	}
	subscribers, err := s.registry.Subscribers(r.Context(), registrant)
	if err != nil {
		return err
	}
	reply.Addresses = addresses.FormatAll(subscribers)
	return nil
}

func (s *Service) CodeHashOf(r *http.Request, args *AccountArgs, reply *CodeHashReply) error {
	account, err := addresses.Parse(args.Account)
	if err != nil {
		return err
	}
	codeHash, err := s.registry.CodeHashOf(r.Context(), account)
	if err != nil {
		return err
	}
	reply.CodeHash = addresses.FormatCodeHash(codeHash)
	return nil
}

func parseTarget(args *TargetArgs) (registrant, target codec.Address, err error) {
	registrant, err = addresses.Parse(args.Registrant)
	if err != nil {
		return
	}
	target, err = addresses.Parse(args.Target)
	return
}
