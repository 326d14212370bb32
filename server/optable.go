// go-ippd - Reference IPP print server
//
// Copyright (C) 2024 and up by Alexander Pevzner (pzz@apevzner.com)
// See LICENSE for license terms and conditions
//
// The exhaustive operation table, binding every operation §4.4
// names to its handler, authorization policy and expected target kind.

package server

import (
	"github.com/OpenPrinting/go-ippd/ipp"
	"github.com/OpenPrinting/goipp"
)

var opTable = map[goipp.Op]opEntry{
	// Job submission and validation.
	goipp.OpPrintJob:        {handlePrintJob, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpPrintURI:        {handlePrintURI, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpValidateJob:     {handleValidateJob, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpCreateJob:       {handleCreateJob, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpSendDocument:    {handleSendDocument, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpSendURI:         {handleSendURI, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpValidateDocument: {handleValidateDocument, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpCloseJob:        {handleCloseJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpAddDocumentImages: {handleValidateDocument, PolicyOwnerOrAdmin, ipp.TargetJob},

	// Job query.
	goipp.OpGetJobAttributes: {handleGetJobAttributes, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpGetJobs:          {handleGetJobs, PolicyPublic, ipp.TargetPrinter},
	goipp.OpSetJobAttributes: {handleSetJobAttributes, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpGetDocumentAttributes: {handleGetJobAttributes, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpGetDocuments:     {handleGetJobs, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpSetDocumentAttributes: {handleSetJobAttributes, PolicyOwnerOrAdmin, ipp.TargetJob},

	// Job lifecycle.
	goipp.OpCancelJob:        {handleCancelJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpCancelCurrentJob: {handleCancelCurrentJob, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpCancelJobs:       {handleCancelJobs, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpCancelMyJobs:     {handleCancelMyJobs, PolicyAuthenticatedAny, ipp.TargetPrinter},
	goipp.OpCancelDocument:   {handleCancelJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpDeleteDocument:   {handleCancelJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpHoldJob:          {handleHoldJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpReleaseJob:       {handleReleaseJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpRestartJob:       {handleRestartJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpReprocessJob:     {handleRestartJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpResubmitJob:      {handleResubmitJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpPromoteJob:       {handlePromoteJob, PolicyAdminGroup, ipp.TargetJob},
	goipp.OpScheduleJobAfter: {handleScheduleJobAfter, PolicyAdminGroup, ipp.TargetJob},
	goipp.OpSuspendCurrentJob: {handleCancelCurrentJob, PolicyPrintGroup, ipp.TargetPrinter},
	goipp.OpResumeJob:        {handleReleaseJob, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpHoldNewJobs:      {handleHoldNewJobs, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpReleaseHeldNewJobs: {handleReleaseHeldNewJobs, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpAcknowledgeJob:   {handleAcknowledgeJob, PolicyProxyGroup, ipp.TargetJob},
	goipp.OpAcknowledgeDocument: {handleAcknowledgeJob, PolicyProxyGroup, ipp.TargetJob},

	// Printer query, configuration and lifecycle.
	goipp.OpGetPrinterAttributes: {handleGetPrinterAttributes, PolicyPublic, ipp.TargetPrinter},
	goipp.OpGetPrinterSupportedValues: {handleGetPrinterAttributes, PolicyPublic, ipp.TargetPrinter},
	goipp.OpSetPrinterAttributes: {handleSetPrinterAttributes, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpCreatePrinter: {handleCreatePrinter, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpDeletePrinter: {handleDeletePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpGetPrinters:   {handleGetPrinters, PolicyPublic, ipp.TargetSystem},
	goipp.OpPausePrinter:  {handlePausePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpResumePrinter: {handleResumePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpPausePrinterAfterCurrentJob: {handlePausePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpEnablePrinter:  {handleEnablePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpDisablePrinter: {handleDisablePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpDeactivatePrinter: {handleDisablePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpActivatePrinter:   {handleEnablePrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpRestartPrinter:    {handleRestartPrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpShutdownPrinter:   {handleShutdownPrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpStartupPrinter:    {handleStartupPrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpShutdownOnePrinter: {handleShutdownPrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpStartupOnePrinter:  {handleStartupPrinter, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpIdentifyPrinter:    {handleIdentifyPrinter, PolicyPublic, ipp.TargetPrinter},
	goipp.OpAcknowledgeIdentifyPrinter: {handleAcknowledgeIdentifyPrinter, PolicyProxyGroup, ipp.TargetPrinter},
	goipp.OpAllocatePrinterResources:   {handleAllocatePrinterResources, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpDeallocatePrinterResources: {handleDeallocatePrinterResources, PolicyAdminGroup, ipp.TargetPrinter},

	// System-wide (all-printers) operations.
	goipp.OpDisableAllPrinters:  {handleDisableAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpEnableAllPrinters:   {handleEnableAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpGetSystemAttributes: {handleGetSystemAttributes, PolicyPublic, ipp.TargetSystem},
	goipp.OpGetSystemSupportedValues: {handleGetSystemAttributes, PolicyPublic, ipp.TargetSystem},
	goipp.OpSetSystemAttributes: {handleSetSystemAttributes, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpPauseAllPrinters:    {handlePauseAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpPauseAllPrintersAfterCurrentJob: {handlePauseAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpResumeAllPrinters:   {handleResumeAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpShutdownAllPrinters: {handleShutdownAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpStartupAllPrinters:  {handleStartupAllPrinters, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpRestartSystem:       {handleRestartSystem, PolicyAdminGroup, ipp.TargetSystem},

	// Subscriptions and notification delivery.
	goipp.OpCreatePrinterSubscriptions: {handleCreateSubscriptions, PolicyAuthenticatedAny, ipp.TargetPrinter},
	goipp.OpCreateJobSubscriptions:     {handleCreateSubscriptions, PolicyOwnerOrAdmin, ipp.TargetJob},
	goipp.OpCreateSystemSubscriptions:  {handleCreateSubscriptions, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpCreateResourceSubscriptions: {handleCreateSubscriptions, PolicyAdminGroup, ipp.TargetPrinter},
	goipp.OpGetSubscriptionAttributes:  {handleGetSubscriptionAttributes, PolicyAuthenticatedAny, ipp.TargetUnknown},
	goipp.OpGetSubscriptions:           {handleGetSubscriptions, PolicyAuthenticatedAny, ipp.TargetUnknown},
	goipp.OpRenewSubscription:          {handleRenewSubscription, PolicyAuthenticatedAny, ipp.TargetUnknown},
	goipp.OpCancelSubscription:         {handleCancelSubscription, PolicyAuthenticatedAny, ipp.TargetUnknown},
	goipp.OpGetNotifications:           {handleGetNotifications, PolicyAuthenticatedAny, ipp.TargetUnknown},

	// Resources.
	goipp.OpCreateResource:        {handleCreateResource, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpSendResourceData:      {handleSendResourceData, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpInstallResource:       {handleInstallResource, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpGetResourceAttributes: {handleGetResourceAttributes, PolicyPublic, ipp.TargetSystem},
	goipp.OpGetResources:          {handleGetResources, PolicyPublic, ipp.TargetSystem},
	goipp.OpSetResourceAttributes: {handleSetResourceAttributes, PolicyAdminGroup, ipp.TargetSystem},
	goipp.OpCancelResource:        {handleCancelResource, PolicyAdminGroup, ipp.TargetSystem},

	// Output device (proxy) registration and fetch loop.
	goipp.OpRegisterOutputDevice:        {handleRegisterOutputDevice, PolicyProxyGroup, ipp.TargetUnknown},
	goipp.OpDeregisterOutputDevice:      {handleDeregisterOutputDevice, PolicyProxyGroup, ipp.TargetSystem},
	goipp.OpGetOutputDeviceAttributes:   {handleGetOutputDeviceAttributes, PolicyProxyGroup, ipp.TargetPrinter},
	goipp.OpupdateOutputDeviceAttributes: {handleUpdateOutputDeviceAttributes, PolicyProxyGroup, ipp.TargetPrinter},
	goipp.OpUpdateActiveJobs:            {handleUpdateActiveJobs, PolicyProxyGroup, ipp.TargetPrinter},
	goipp.OpUpdateDocumentStatus:        {handleUpdateJobStatus, PolicyProxyGroup, ipp.TargetJob},
	goipp.OpUpdateJobStatus:             {handleUpdateJobStatus, PolicyProxyGroup, ipp.TargetJob},
	goipp.OpFetchJob:                    {handleFetchJob, PolicyProxyGroup, ipp.TargetPrinter},
	goipp.OpFetchDocument:               {handleFetchDocument, PolicyProxyGroup, ipp.TargetJob},
}
