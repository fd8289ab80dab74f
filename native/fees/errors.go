package fees

import "errors"

var (
	ErrBadPrice             = errors.New("fees: oracle price invalid")
	ErrStalePrice           = errors.New("fees: oracle price stale")
	ErrInvalidFeedDecimals  = errors.New("fees: oracle decimals exceed supported range")
	ErrPriceFeedUnavailable = errors.New("fees: price feed unavailable")
	ErrInsufficientFee      = errors.New("fees: insufficient fee payment")
	ErrInvalidConfig        = errors.New("fees: invalid configuration")
	ErrZeroAddress          = errors.New("fees: receiver must not be the zero address")
	ErrConversionOverflow   = errors.New("fees: conversion overflow")
)
