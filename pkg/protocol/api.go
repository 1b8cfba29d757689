// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package protocol

import "strconv"

// Type is the record type key identifying a field layout.
type Type int

// Record type keys known to the PAL server.
const (
	TypeEnviron           Type = 0
	TypeConnect           Type = 1
	TypeOperation         Type = 2
	TypeSystemFile        Type = 3
	TypeLibraryStatistics Type = 4
	TypeLibrary           Type = 5
	TypeLibID             Type = 6
	TypeObjDesc           Type = 7
	TypeObject            Type = 8
	TypeStackCmd          Type = 9
	TypeResult            Type = 10
	TypeResultEx          Type = 11
	TypeSourceCodePage    Type = 12
	TypeStream            Type = 13
	TypeUtility           Type = 14
	TypeSrcDesc           Type = 15
	TypeSrvAppList        Type = 16
	TypeAppID             Type = 17
	TypeCatallDesc        Type = 18
	TypeNotify            Type = 19
	TypeGeneric           Type = 20
	TypeAttrList          Type = 21
	TypeDescrip           Type = 22
	TypeFileID            Type = 23
	TypeStream2           Type = 24
	TypeNatParm           Type = 25
	TypeSQLAuthentication Type = 26
	TypeCmdGuard          Type = 27
	TypeSysVar            Type = 28
	TypeObjDesc2          Type = 29
	TypeLibID2            Type = 30
	TypeFindInfo          Type = 31
	TypeFindResult        Type = 32
	TypeFindStatus        Type = 33
	TypeDbgStackFrame     Type = 34
	TypeDbgStatus         Type = 35
	TypeDbgVarContainer   Type = 36
	TypeDbgSyt            Type = 37
	TypeDbgVarDesc        Type = 38
	TypeDbgVarValue       Type = 39
	TypeDbgSpy            Type = 40
	TypeDbgVarDescHdl     Type = 41
	TypeSourceUnicode     Type = 42
	TypeVarValueHdl       Type = 43
	TypeProxyConnect      Type = 44
	TypeCodePage          Type = 45
	TypeLibID3            Type = 46
	TypeSuppressLine      Type = 47
	TypeSourceCP          Type = 48
	TypeDbmsInfo          Type = 49
	TypeClientConfig      Type = 50
	TypeEnviron1          Type = 51
	TypeDevEnv            Type = 52
	TypeDbgNatStack       Type = 53
	TypeTimeStamp         Type = 54
	TypeDbgaRecord        Type = 55
	TypeMonitorInfo       Type = 56

	MaxType Type = TypeMonitorInfo
)

var typeNames = [...]string{
	"Environ", "Connect", "Operation", "SystemFile", "LibraryStatistics",
	"Library", "LibId", "ObjDesc", "Object", "StackCmd",
	"Result", "ResultEx", "SourceCodePage", "Stream", "Utility",
	"SrcDesc", "SrvAppList", "AppId", "CatallDesc", "Notify",
	"Generic", "AttrList", "Descrip", "FileId", "Stream",
	"NatParm", "SQLAuthentification", "CmdGuard", "SysVar", "ObjDesc2",
	"LibId", "FindInfo", "FindResult", "FindStatus", "DbgStackFrame",
	"DbgStatus", "DbgVarContainer", "DbgSyt", "DbgVarDesc", "DbgVarValue",
	"DbgSpy", "DbgVarDescHdl", "SourceUnicode", "VarValueHdl", "ProxyConnect",
	"CP", "LibId", "SuppressLine", "SourceCP", "DbmsInfo",
	"ClientConfig", "Environ1", "DevEnv", "DbgNatStack", "TimeStamp",
	"DbgaRecord", "MonitorInfo",
}

// Valid reports whether t is inside the known type key range.
func (t Type) Valid() bool {
	return t >= 0 && t <= MaxType
}

func (t Type) String() string {
	if !t.Valid() {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// End markers trailing every record and terminating every packet.
const (
	MarkerBufferFull      = 32001
	MarkerSegmentContinue = 32002
	MarkerRecordEnd       = 32003
	MarkerTransactionEnd  = 32004
)

// Packet layout. The overheads reserve room for the type header, the
// record length prefix, the record marker and the packet trailer.
const (
	TrailerLen              = 6
	MaxPacketSize           = 4000
	TransactionSizeLen      = 12
	RecordCountLen          = 12
	firstWriteOffset        = HeaderLen + TransactionSizeLen
	firstRecordOverhead     = 42
	followingRecordOverhead = 24
)

// Protocol versions gating optional handshakes.
const (
	VersionNextChunk  = 17
	VersionDisconnect = 47
)
